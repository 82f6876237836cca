// Package indexer drains stored messages into a search engine.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/chansearch/internal/crawler"
	"github.com/JakeFAU/chansearch/internal/metrics"
)

var tracer = otel.Tracer("chansearch/indexer")

// DefaultBatchSize is the bulk size used when none is configured.
const DefaultBatchSize = 100

// Document is the search representation of one message.
type Document struct {
	ID        string `json:"-"`
	ChannelID string `json:"channel_id"`
	MessageID int64  `json:"message_id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	PostedAt  int64  `json:"posted_at"`
}

// NewDocument maps a message to its document; the id is stable so re-indexing overwrites.
func NewDocument(msg crawler.Message) Document {
	return Document{
		ID:        msg.DocID(),
		ChannelID: msg.ChannelID,
		MessageID: msg.MessageID,
		Author:    msg.Author,
		Text:      msg.Text,
		PostedAt:  msg.PostedAt,
	}
}

// SearchEngine accepts bulk upserts keyed by document id.
type SearchEngine interface {
	// BulkUpsert writes docs without forcing them to be searchable.
	BulkUpsert(ctx context.Context, index string, docs []Document) error
	// Refresh makes previously written documents visible to queries.
	Refresh(ctx context.Context, index string) error
}

// Config controls Indexer behavior.
type Config struct {
	Index     string
	BatchSize int
}

// Stats summarizes one sweep.
type Stats struct {
	Batches   int
	Documents int
}

// Indexer moves messages from a Source into a SearchEngine.
type Indexer struct {
	engine SearchEngine
	cfg    Config
	logger *zap.Logger
}

// New constructs an Indexer.
func New(engine SearchEngine, cfg Config, logger *zap.Logger) (*Indexer, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if cfg.Index == "" {
		return nil, errors.New("index name is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{engine: engine, cfg: cfg, logger: logger}, nil
}

// Run drains src and refreshes the index once it is empty. A bulk failure aborts the sweep before
// the refresh; batches already written stay indexed.
func (ix *Indexer) Run(ctx context.Context, src Source) (stats Stats, err error) {
	ctx, span := tracer.Start(ctx, "IndexSweep")
	defer func() {
		span.SetAttributes(
			attribute.String("index", ix.cfg.Index),
			attribute.Int("batches", stats.Batches),
			attribute.Int("documents", stats.Documents),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "index sweep failed")
		}
		span.End()
	}()
	for {
		batch, err := src.ReadBatch(ctx, ix.cfg.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("read batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		docs := make([]Document, 0, len(batch))
		for _, msg := range batch {
			docs = append(docs, NewDocument(msg))
		}
		if err := ix.engine.BulkUpsert(ctx, ix.cfg.Index, docs); err != nil {
			metrics.ObserveIndexBatch("error", len(docs))
			return stats, fmt.Errorf("bulk upsert %d documents: %w", len(docs), err)
		}
		metrics.ObserveIndexBatch("ok", len(docs))
		stats.Batches++
		stats.Documents += len(docs)
		ix.logger.Debug("batch indexed", zap.Int("documents", len(docs)), zap.Int("batches", stats.Batches))
	}
	if err := ix.engine.Refresh(ctx, ix.cfg.Index); err != nil {
		return stats, fmt.Errorf("refresh index %s: %w", ix.cfg.Index, err)
	}
	ix.logger.Info("index sweep finished",
		zap.String("index", ix.cfg.Index),
		zap.Int("batches", stats.Batches),
		zap.Int("documents", stats.Documents),
	)
	return stats, nil
}

// RunSweep builds a fresh cursor over store and drains it.
func (ix *Indexer) RunSweep(ctx context.Context, store crawler.MessageStore) (Stats, error) {
	return ix.Run(ctx, NewCursorSource(store))
}
