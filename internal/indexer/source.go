package indexer

import (
	"context"
	"fmt"

	"github.com/JakeFAU/chansearch/internal/crawler"
)

// Source yields stored messages in batches; an empty batch means the source is drained.
type Source interface {
	ReadBatch(ctx context.Context, limit int) ([]crawler.Message, error)
}

// CursorSource performs one forward sweep over a message store using its continuation token.
// It cannot be rewound; build a new one for the next sweep.
type CursorSource struct {
	store   crawler.MessageStore
	token   string
	started bool
}

// NewCursorSource returns a source positioned before the first stored message.
func NewCursorSource(store crawler.MessageStore) *CursorSource {
	return &CursorSource{store: store}
}

// ReadBatch returns the next page of at most limit messages. Once the store stops handing out a
// continuation token every further call returns an empty batch without touching the store.
func (s *CursorSource) ReadBatch(ctx context.Context, limit int) ([]crawler.Message, error) {
	if s.Exhausted() {
		return nil, nil
	}
	page, err := s.store.ScanMessages(ctx, crawler.ScanRequest{Limit: limit, Token: s.token})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	s.started = true
	s.token = page.NextToken
	return page.Items, nil
}

// Exhausted reports whether the sweep has finished.
func (s *CursorSource) Exhausted() bool {
	return s.started && s.token == ""
}
