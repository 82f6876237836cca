package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/chansearch/internal/crawler"
)

type messageKey struct {
	channelID string
	messageID int64
}

func (k messageKey) less(o messageKey) bool {
	if k.channelID != o.channelID {
		return k.channelID < o.channelID
	}
	return k.messageID < o.messageID
}

// Store provides an in-memory crawler.Store for development/testing.
type Store struct {
	mu       sync.RWMutex
	channels map[string]crawler.Channel
	messages map[messageKey]crawler.Message
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{
		channels: make(map[string]crawler.Channel),
		messages: make(map[messageKey]crawler.Message),
	}
}

// GetChannel fetches a channel by ID.
func (s *Store) GetChannel(_ context.Context, id string) (crawler.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return crawler.Channel{}, crawler.ErrChannelNotFound
	}
	return ch, nil
}

// PutChannel overwrites the channel row.
func (s *Store) PutChannel(_ context.Context, ch crawler.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ID] = ch
	return nil
}

// ListChannels returns channels ordered by LastCrawledTs, then ID.
func (s *Store) ListChannels(_ context.Context, q crawler.ChannelQuery) ([]crawler.Channel, error) {
	s.mu.RLock()
	out := make([]crawler.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		if q.Status != "" && ch.Status != q.Status {
			continue
		}
		out = append(out, ch)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastCrawledTs != out[j].LastCrawledTs {
			return out[i].LastCrawledTs < out[j].LastCrawledTs
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// PutMessage stores msg unless a message with the same key already exists.
func (s *Store) PutMessage(_ context.Context, msg crawler.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := messageKey{channelID: msg.ChannelID, messageID: msg.MessageID}
	if _, exists := s.messages[key]; exists {
		return nil
	}
	s.messages[key] = msg
	return nil
}

// ScanMessages pages forward through messages in key order.
func (s *Store) ScanMessages(_ context.Context, req crawler.ScanRequest) (crawler.ScanPage, error) {
	var after *messageKey
	if req.Token != "" {
		channelID, messageID, err := crawler.DecodeScanToken(req.Token)
		if err != nil {
			return crawler.ScanPage{}, err
		}
		after = &messageKey{channelID: channelID, messageID: messageID}
	}

	s.mu.RLock()
	keys := make([]messageKey, 0, len(s.messages))
	for k := range s.messages {
		if after != nil && !after.less(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	if req.Limit > 0 && len(keys) > req.Limit {
		keys = keys[:req.Limit]
	}
	items := make([]crawler.Message, 0, len(keys))
	for _, k := range keys {
		items = append(items, s.messages[k])
	}
	s.mu.RUnlock()

	page := crawler.ScanPage{Items: items}
	if req.Limit > 0 && len(items) == req.Limit {
		last := items[len(items)-1]
		page.NextToken = crawler.EncodeScanToken(last.ChannelID, last.MessageID)
	}
	return page, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
