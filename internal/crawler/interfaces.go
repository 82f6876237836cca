package crawler

import (
	"context"
	"io"
	"time"
)

// ChannelStore persists channel metadata.
type ChannelStore interface {
	GetChannel(ctx context.Context, id string) (Channel, error)
	PutChannel(ctx context.Context, channel Channel) error
	ListChannels(ctx context.Context, query ChannelQuery) ([]Channel, error)
}

// MessageStore persists messages keyed by (channel id, message id).
type MessageStore interface {
	PutMessage(ctx context.Context, msg Message) error
	ScanMessages(ctx context.Context, req ScanRequest) (ScanPage, error)
}

// Store is the durable message store consumed by both the crawler and the indexer.
type Store interface {
	ChannelStore
	MessageStore
	Ping(ctx context.Context) error
	Close() error
}

// Platform fetches pages of channel history, newest first.
type Platform interface {
	FetchMessages(ctx context.Context, channelID string, window FetchWindow) ([]PlatformMessage, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes crawl events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archive paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
