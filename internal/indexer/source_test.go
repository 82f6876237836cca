package indexer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/chansearch/internal/crawler"
)

// sliceStore serves ScanMessages from a sorted slice using offset tokens.
type sliceStore struct {
	mu       sync.Mutex
	messages []crawler.Message
	scans    int
	failNext error
}

func newSliceStore(msgs ...crawler.Message) *sliceStore {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].DocID() < msgs[j].DocID() })
	return &sliceStore{messages: msgs}
}

func (s *sliceStore) PutMessage(context.Context, crawler.Message) error {
	return errors.New("read only")
}

func (s *sliceStore) ScanMessages(_ context.Context, req crawler.ScanRequest) (crawler.ScanPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return crawler.ScanPage{}, err
	}
	start := 0
	if req.Token != "" {
		channelID, messageID, err := crawler.DecodeScanToken(req.Token)
		if err != nil {
			return crawler.ScanPage{}, err
		}
		key := crawler.DocID(channelID, messageID)
		for start < len(s.messages) && s.messages[start].DocID() <= key {
			start++
		}
	}
	end := start + req.Limit
	if end > len(s.messages) {
		end = len(s.messages)
	}
	page := crawler.ScanPage{Items: append([]crawler.Message(nil), s.messages[start:end]...)}
	if end-start == req.Limit {
		last := s.messages[end-1]
		page.NextToken = crawler.EncodeScanToken(last.ChannelID, last.MessageID)
	}
	return page, nil
}

func (s *sliceStore) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

func msg(channel string, id int64) crawler.Message {
	return crawler.Message{ChannelID: channel, MessageID: id, Author: "author", Text: "text", PostedAt: id}
}

func TestCursorSourceFreshSourceReads(t *testing.T) {
	t.Parallel()

	store := newSliceStore()
	src := NewCursorSource(store)
	require.False(t, src.Exhausted())

	batch, err := src.ReadBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, batch)
	require.Equal(t, 1, store.scanCount())
	require.True(t, src.Exhausted())
}

func TestCursorSourceStopsReadingOnceExhausted(t *testing.T) {
	t.Parallel()

	store := newSliceStore(msg("a", 1), msg("a", 2), msg("b", 1))
	src := NewCursorSource(store)

	first, err := src.ReadBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.False(t, src.Exhausted())

	second, err := src.ReadBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, "b:1", second[0].DocID())
	require.True(t, src.Exhausted())

	for i := 0; i < 3; i++ {
		batch, err := src.ReadBatch(context.Background(), 2)
		require.NoError(t, err)
		require.Empty(t, batch)
	}
	require.Equal(t, 2, store.scanCount())
}

func TestCursorSourceFailedReadKeepsPosition(t *testing.T) {
	t.Parallel()

	store := newSliceStore(msg("a", 1), msg("a", 2))
	store.failNext = errors.New("throttled")
	src := NewCursorSource(store)

	_, err := src.ReadBatch(context.Background(), 5)
	require.ErrorContains(t, err, "throttled")
	require.False(t, src.Exhausted())

	batch, err := src.ReadBatch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, batch, 2)
}
