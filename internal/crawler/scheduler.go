package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultMinCrawlInterval is the cooldown applied when none is configured.
const DefaultMinCrawlInterval = 300 * time.Second

// Scheduler picks the next channels to crawl, oldest-crawled first.
type Scheduler struct {
	channels         ChannelStore
	clock            Clock
	minCrawlInterval time.Duration
	logger           *zap.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(channels ChannelStore, clock Clock, minCrawlInterval time.Duration, logger *zap.Logger) *Scheduler {
	if minCrawlInterval <= 0 {
		minCrawlInterval = DefaultMinCrawlInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		channels:         channels,
		clock:            clock,
		minCrawlInterval: minCrawlInterval,
		logger:           logger,
	}
}

// SelectBatch reads up to limit active channels ordered by LastCrawledTs and drops the ones still
// inside the cooldown, so the result may be shorter than limit.
func (s *Scheduler) SelectBatch(ctx context.Context, limit int) ([]Channel, error) {
	candidates, err := s.channels.ListChannels(ctx, ChannelQuery{
		Status: ChannelStatusActive,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	now := s.clock.Now().Unix()
	minSeconds := int64(s.minCrawlInterval / time.Second)
	out := make([]Channel, 0, len(candidates))
	for _, ch := range candidates {
		elapsed := now - ch.LastCrawledTs
		if elapsed < minSeconds {
			s.logger.Debug("channel inside cooldown, skipping",
				zap.String("channel_id", ch.ID),
				zap.Int64("elapsed_seconds", elapsed),
				zap.Int64("cooldown_seconds", minSeconds),
			)
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}
