package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/chansearch/internal/metrics"
)

var tracer = otel.Tracer("chansearch/crawler")

// DefaultChannelBatchSize caps how many channels one crawl pass selects.
const DefaultChannelBatchSize = 100

// CrawlerConfig controls one crawl pass.
type CrawlerConfig struct {
	ChannelBatchSize int
	Topic            string
}

// RunSummary aggregates the per-channel results of one pass.
type RunSummary struct {
	RunID          string
	Selected       int
	Failed         int
	MessagesStored int
	Results        []Result
}

// Crawler runs scheduler-selected channels through the processor.
type Crawler struct {
	scheduler *Scheduler
	processor *Processor
	publisher Publisher
	ids       IDGenerator
	clock     Clock
	cfg       CrawlerConfig
	logger    *zap.Logger
}

// NewCrawler constructs a Crawler. publisher may be nil to disable crawl notifications.
func NewCrawler(
	scheduler *Scheduler,
	processor *Processor,
	publisher Publisher,
	ids IDGenerator,
	clock Clock,
	cfg CrawlerConfig,
	logger *zap.Logger,
) *Crawler {
	if cfg.ChannelBatchSize <= 0 {
		cfg.ChannelBatchSize = DefaultChannelBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		scheduler: scheduler,
		processor: processor,
		publisher: publisher,
		ids:       ids,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunOnce selects a batch and processes each channel sequentially. A failing channel does not stop
// the pass; every per-channel error is joined into the returned error.
func (c *Crawler) RunOnce(ctx context.Context) (RunSummary, error) {
	runID, err := c.ids.NewID()
	if err != nil {
		return RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	summary := RunSummary{RunID: runID}
	logger := c.logger.With(zap.String("run_id", runID))
	ctx, span := tracer.Start(ctx, "RunOnce", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	batch, err := c.scheduler.SelectBatch(ctx, c.cfg.ChannelBatchSize)
	if err != nil {
		return summary, err
	}
	summary.Selected = len(batch)
	logger.Info("crawl pass started", zap.Int("channels", len(batch)))

	var errs []error
	for i := range batch {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		ch := batch[i]
		chCtx, chSpan := tracer.Start(ctx, "ProcessChannel", trace.WithAttributes(attribute.String("channel_id", ch.ID)))
		res, procErr := c.processor.ProcessChannel(chCtx, &ch)
		chSpan.SetAttributes(
			attribute.String("outcome", string(res.Outcome)),
			attribute.Int("messages_stored", res.MessagesStored),
		)
		summary.Results = append(summary.Results, res)
		summary.MessagesStored += res.MessagesStored
		metrics.ObserveChannelCrawl(string(res.Outcome), res.MessagesStored, res.Duration)

		fields := []zap.Field{
			zap.String("channel_id", ch.ID),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("pages", res.Pages),
			zap.Int("stored", res.MessagesStored),
			zap.Int64("last_seen_message_id", res.LastSeenMessageID),
			zap.Duration("duration", res.Duration),
		}
		if procErr != nil {
			summary.Failed++
			errs = append(errs, fmt.Errorf("channel %s: %w", ch.ID, procErr))
			logger.Error("channel crawl failed", append(fields, zap.Error(procErr))...)
			chSpan.RecordError(procErr)
			chSpan.SetStatus(codes.Error, "channel crawl failed")
		} else {
			logger.Info("channel crawled", fields...)
		}
		c.notify(chCtx, runID, res, procErr)
		chSpan.End()
	}

	if summary.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d channels failed", summary.Failed))
	}
	logger.Info("crawl pass finished",
		zap.Int("selected", summary.Selected),
		zap.Int("failed", summary.Failed),
		zap.Int("stored", summary.MessagesStored),
	)
	return summary, errors.Join(errs...)
}

func (c *Crawler) notify(ctx context.Context, runID string, res Result, procErr error) {
	if c.publisher == nil || c.cfg.Topic == "" {
		return
	}
	event := CrawlEvent{
		RunID:             runID,
		ChannelID:         res.ChannelID,
		Outcome:           res.Outcome,
		MessagesStored:    res.MessagesStored,
		LastSeenMessageID: res.LastSeenMessageID,
		CrawledAt:         c.clock.Now().UTC().Format(time.RFC3339),
	}
	if procErr != nil {
		event.Error = procErr.Error()
	}
	msgID, err := c.publisher.Publish(context.WithoutCancel(ctx), c.cfg.Topic, event)
	if err != nil {
		c.logger.Warn("publish crawl event failed",
			zap.String("run_id", runID),
			zap.String("channel_id", res.ChannelID),
			zap.Error(err),
		)
		return
	}
	c.logger.Debug("crawl event published", zap.String("channel_id", res.ChannelID), zap.String("message_id", msgID))
}
