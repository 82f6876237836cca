// Package memory serves channel history from process memory, for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/chansearch/internal/crawler"
)

// Platform implements crawler.Platform over an in-memory message list.
type Platform struct {
	mu       sync.RWMutex
	messages map[string][]crawler.PlatformMessage
}

// New constructs an empty Platform.
func New() *Platform {
	return &Platform{messages: make(map[string][]crawler.PlatformMessage)}
}

// Post adds messages to a channel's history.
func (p *Platform) Post(channelID string, msgs ...crawler.PlatformMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	history := append(p.messages[channelID], msgs...)
	sort.Slice(history, func(i, j int) bool { return history[i].ID > history[j].ID })
	p.messages[channelID] = history
}

// FetchMessages returns messages inside the window, newest first.
func (p *Platform) FetchMessages(
	ctx context.Context,
	channelID string,
	window crawler.FetchWindow,
) ([]crawler.PlatformMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []crawler.PlatformMessage
	for _, m := range p.messages[channelID] {
		if m.ID <= window.MinID {
			break
		}
		if window.MaxID > 0 && m.ID >= window.MaxID {
			continue
		}
		out = append(out, m)
		if window.Limit > 0 && len(out) == window.Limit {
			break
		}
	}
	return out, nil
}
