package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultMessageBatchSize is the page size requested from the platform when none is configured.
const DefaultMessageBatchSize = 100

// ProcessorConfig controls Processor behavior.
type ProcessorConfig struct {
	MessageBatchSize int
	// EarliestTsToProcess is the floor (unix seconds); older messages are never stored.
	EarliestTsToProcess int64
	ArchivePrefix       string
	ArchiveContentType  string
}

// ChannelMessageStore is the subset of Store the processor writes to.
type ChannelMessageStore interface {
	ChannelStore
	MessageStore
}

// Processor crawls one channel backward from the newest message to its watermark.
type Processor struct {
	store    ChannelMessageStore
	platform Platform
	archive  BlobStore
	hasher   Hasher
	clock    Clock
	cfg      ProcessorConfig
	logger   *zap.Logger
}

// NewProcessor constructs a Processor. archive and hasher may be nil to disable page archiving.
func NewProcessor(
	store ChannelMessageStore,
	platform Platform,
	archive BlobStore,
	hasher Hasher,
	clock Clock,
	cfg ProcessorConfig,
	logger *zap.Logger,
) *Processor {
	if cfg.MessageBatchSize <= 0 {
		cfg.MessageBatchSize = DefaultMessageBatchSize
	}
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "application/json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:    store,
		platform: platform,
		archive:  archive,
		hasher:   hasher,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

type pageResult struct {
	minID           int64
	maxID           int64
	count           int
	earliestReached bool
}

// ProcessChannel pages backward through ch until the page is empty or the floor timestamp is hit.
// ch is updated in place. LastCrawledTs is set and the channel persisted on every exit path.
func (p *Processor) ProcessChannel(ctx context.Context, ch *Channel) (res Result, err error) {
	start := p.clock.Now()
	res = Result{ChannelID: ch.ID, Outcome: OutcomeContinue}
	logger := p.logger.With(zap.String("channel_id", ch.ID))

	defer func() {
		ch.LastCrawledTs = p.clock.Now().Unix()
		if putErr := p.persist(context.WithoutCancel(ctx), ch, logger); putErr != nil {
			err = errors.Join(err, fmt.Errorf("persist crawl time: %w", putErr))
		}
		if err != nil {
			res.Outcome = OutcomeFailed
		}
		res.LastSeenMessageID = ch.LastSeenMessageID
		res.Duration = p.clock.Now().Sub(start)
	}()

	minID := ch.LastSeenMessageID
	var maxID int64
	for {
		window := FetchWindow{MinID: minID, MaxID: maxID, Limit: p.cfg.MessageBatchSize}
		logger.Debug("fetching messages",
			zap.Int64("min_id", window.MinID),
			zap.Int64("max_id", window.MaxID),
			zap.Int("limit", window.Limit),
		)
		page, fetchErr := p.platform.FetchMessages(ctx, ch.ID, window)
		if fetchErr != nil {
			return res, fmt.Errorf("fetch messages: %w", fetchErr)
		}
		if len(page) == 0 {
			res.Outcome = OutcomeExhausted
			return res, nil
		}
		res.Pages++
		p.archivePage(ctx, ch.ID, window, page)

		stored, storeErr := p.storePage(ctx, ch.ID, page)
		res.MessagesStored += stored.count
		if storeErr != nil {
			return res, storeErr
		}
		if stored.count > 0 {
			if stored.maxID > ch.LastSeenMessageID {
				ch.LastSeenMessageID = stored.maxID
			}
			if putErr := p.persist(ctx, ch, logger); putErr != nil {
				return res, fmt.Errorf("persist watermark: %w", putErr)
			}
			maxID = stored.minID
		}
		logger.Debug("stored page",
			zap.Int("stored", stored.count),
			zap.Int64("page_min_id", stored.minID),
			zap.Int64("page_max_id", stored.maxID),
			zap.Int64("last_seen_message_id", ch.LastSeenMessageID),
		)
		if stored.earliestReached {
			res.Outcome = OutcomeEarliestReached
			return res, nil
		}
	}
}

// persist writes the crawl state of ch. Name and status are operator-owned, so they are taken from the
// stored row to keep a status change made during the crawl.
func (p *Processor) persist(ctx context.Context, ch *Channel, logger *zap.Logger) error {
	current, err := p.store.GetChannel(ctx, ch.ID)
	switch {
	case err == nil:
		ch.Name = current.Name
		ch.Status = current.Status
	case errors.Is(err, ErrChannelNotFound):
	default:
		logger.Warn("reload channel before persist failed", zap.Error(err))
	}
	return p.store.PutChannel(ctx, *ch)
}

// storePage writes messages in page order and stops at the first one older than the floor.
func (p *Processor) storePage(ctx context.Context, channelID string, page []PlatformMessage) (pageResult, error) {
	var r pageResult
	for _, m := range page {
		if m.Date < p.cfg.EarliestTsToProcess {
			r.earliestReached = true
			break
		}
		msg := Message{
			ChannelID: channelID,
			MessageID: m.ID,
			Author:    m.Author,
			Text:      m.Text,
			PostedAt:  m.Date,
		}
		if err := p.store.PutMessage(ctx, msg); err != nil {
			return r, fmt.Errorf("store message %s: %w", msg.DocID(), err)
		}
		if r.count == 0 || m.ID < r.minID {
			r.minID = m.ID
		}
		if m.ID > r.maxID {
			r.maxID = m.ID
		}
		r.count++
	}
	return r, nil
}

type archivedPage struct {
	ChannelID string            `json:"channel_id"`
	MinID     int64             `json:"min_id"`
	MaxID     int64             `json:"max_id"`
	FetchedAt int64             `json:"fetched_at"`
	Messages  []PlatformMessage `json:"messages"`
}

func (p *Processor) archivePage(ctx context.Context, channelID string, window FetchWindow, page []PlatformMessage) {
	if p.archive == nil || p.hasher == nil {
		return
	}
	data, err := json.Marshal(archivedPage{
		ChannelID: channelID,
		MinID:     window.MinID,
		MaxID:     window.MaxID,
		FetchedAt: p.clock.Now().Unix(),
		Messages:  page,
	})
	if err != nil {
		p.logger.Warn("marshal archived page failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	hash, err := p.hasher.Hash(data)
	if err != nil {
		p.logger.Warn("hash archived page failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	uri, err := p.archive.PutObject(ctx, p.buildArchivePath(channelID, hash), p.cfg.ArchiveContentType, bytes.NewReader(data))
	if err != nil {
		p.logger.Warn("archive page failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	p.logger.Debug("page archived", zap.String("channel_id", channelID), zap.String("uri", uri))
}

func (p *Processor) buildArchivePath(channelID, hash string) string {
	prefix := strings.Trim(p.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", channelID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.json", prefix, channelID, hash)
}
