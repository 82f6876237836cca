package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SeedRequest registers a channel for crawling.
type SeedRequest struct {
	ChannelID string
	Name      string
}

// Validate checks the request fields.
func (r SeedRequest) Validate() error {
	if strings.TrimSpace(r.ChannelID) == "" {
		return errors.New("channel id is required")
	}
	if strings.ContainsAny(r.ChannelID, " \t\n") {
		return fmt.Errorf("channel id %q must not contain whitespace", r.ChannelID)
	}
	return nil
}

// SeedChannel writes a fresh channel row unless one already exists. The returned bool reports
// whether the channel was already indexed; an existing row is returned untouched.
func SeedChannel(ctx context.Context, store ChannelStore, req SeedRequest) (Channel, bool, error) {
	if err := req.Validate(); err != nil {
		return Channel{}, false, err
	}
	existing, err := store.GetChannel(ctx, req.ChannelID)
	switch {
	case err == nil:
		return existing, true, nil
	case !errors.Is(err, ErrChannelNotFound):
		return Channel{}, false, fmt.Errorf("get channel %s: %w", req.ChannelID, err)
	}
	name := req.Name
	if name == "" {
		name = req.ChannelID
	}
	ch := NewChannel(req.ChannelID, name)
	if err := store.PutChannel(ctx, ch); err != nil {
		return Channel{}, false, fmt.Errorf("put channel %s: %w", req.ChannelID, err)
	}
	return ch, false, nil
}

// StatusRequest moves a channel to a new status.
type StatusRequest struct {
	ChannelID string
	Status    ChannelStatus
}

// Validate checks the request fields.
func (r StatusRequest) Validate() error {
	if strings.TrimSpace(r.ChannelID) == "" {
		return errors.New("channel id is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown channel status %q", r.Status)
	}
	return nil
}

// SetChannelStatus updates the status of an existing channel and leaves its watermarks alone.
func SetChannelStatus(ctx context.Context, store ChannelStore, req StatusRequest) (Channel, error) {
	if err := req.Validate(); err != nil {
		return Channel{}, err
	}
	ch, err := store.GetChannel(ctx, req.ChannelID)
	if err != nil {
		return Channel{}, fmt.Errorf("get channel %s: %w", req.ChannelID, err)
	}
	if ch.Status == req.Status {
		return ch, nil
	}
	ch.Status = req.Status
	if err := store.PutChannel(ctx, ch); err != nil {
		return Channel{}, fmt.Errorf("put channel %s: %w", req.ChannelID, err)
	}
	return ch, nil
}
