package crawler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type fakeStore struct {
	mu            sync.Mutex
	channels      map[string]Channel
	messages      map[string]Message
	putChannels   int
	putMessageErr error
	listErr       error
}

func newFakeStore(channels ...Channel) *fakeStore {
	s := &fakeStore{
		channels: make(map[string]Channel),
		messages: make(map[string]Message),
	}
	for _, ch := range channels {
		s.channels[ch.ID] = ch
	}
	return s
}

func (s *fakeStore) GetChannel(_ context.Context, id string) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return Channel{}, ErrChannelNotFound
	}
	return ch, nil
}

func (s *fakeStore) PutChannel(ctx context.Context, ch Channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putChannels++
	s.channels[ch.ID] = ch
	return nil
}

func (s *fakeStore) ListChannels(_ context.Context, q ChannelQuery) ([]Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		if q.Status != "" && ch.Status != q.Status {
			continue
		}
		out = append(out, ch)
	}
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

func (s *fakeStore) PutMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putMessageErr != nil {
		return s.putMessageErr
	}
	if _, ok := s.messages[msg.DocID()]; !ok {
		s.messages[msg.DocID()] = msg
	}
	return nil
}

func (s *fakeStore) ScanMessages(context.Context, ScanRequest) (ScanPage, error) {
	return ScanPage{}, errors.New("not implemented")
}

func (s *fakeStore) channel(id string) Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[id]
}

func (s *fakeStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) FetchMessages(ctx context.Context, channelID string, window FetchWindow) ([]PlatformMessage, error) {
	args := m.Called(ctx, channelID, window)
	page, _ := args.Get(0).([]PlatformMessage)
	return page, args.Error(1)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (b *fakeBlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, data); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = make(map[string][]byte)
	}
	b.objects[path] = buf.Bytes()
	return "memory://" + path, nil
}

type sha256Hasher struct{}

func (sha256Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, payload)
	return "msg", nil
}

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "run-" + string(rune('0'+s.n)), nil
}
