// Package ratelimit implements token bucket limits for platform API calls.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/chansearch/internal/metrics"
)

// Config holds rate limiter configuration. Zero or negative rates mean unlimited.
type Config struct {
	// RPS caps requests across every channel.
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
	// ChannelRPS caps requests against a single channel.
	ChannelRPS float64 `mapstructure:"channel_rps"`
}

// Limiter holds a global bucket plus one bucket per channel.
type Limiter struct {
	global       *rate.Limiter
	mu           sync.Mutex
	channels     map[string]*rate.Limiter
	channelRate  rate.Limit
	channelBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		global:       rate.NewLimiter(limitFor(cfg.RPS), burst),
		channels:     make(map[string]*rate.Limiter),
		channelRate:  limitFor(cfg.ChannelRPS),
		channelBurst: 1,
	}
}

func limitFor(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

// Wait blocks until both the global and the channel bucket grant a token.
func (l *Limiter) Wait(ctx context.Context, channelID string) error {
	l.mu.Lock()
	limiter, exists := l.channels[channelID]
	if !exists {
		limiter = rate.NewLimiter(l.channelRate, l.channelBurst)
		l.channels[channelID] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := l.global.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Immediate grants are not delays.
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(d)
	}
	return nil
}
