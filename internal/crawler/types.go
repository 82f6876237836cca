// Package crawler defines the channel/message domain shared across subsystems.
package crawler

import (
	"fmt"
	"time"
)

// ChannelStatus represents whether a channel is eligible for crawling.
type ChannelStatus string

// Channel status values persisted in the channel store.
const (
	ChannelStatusActive   ChannelStatus = "active"
	ChannelStatusPaused   ChannelStatus = "paused"
	ChannelStatusArchived ChannelStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s ChannelStatus) Valid() bool {
	switch s {
	case ChannelStatusActive, ChannelStatusPaused, ChannelStatusArchived:
		return true
	default:
		return false
	}
}

// Channel is one crawl target on the source platform.
type Channel struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Status ChannelStatus `json:"status"`
	// LastCrawledTs is the unix time (seconds) of the last crawl attempt, successful or not.
	LastCrawledTs int64 `json:"last_crawled_ts"`
	// LastSeenMessageID is the highest message id durably stored for the channel.
	LastSeenMessageID int64 `json:"last_seen_message_id"`
}

// NewChannel returns the seed row for a channel that has never been crawled.
func NewChannel(id, name string) Channel {
	return Channel{
		ID:     id,
		Name:   name,
		Status: ChannelStatusActive,
	}
}

// LastCrawledAt converts LastCrawledTs to a time.Time (zero when never crawled).
func (c Channel) LastCrawledAt() time.Time {
	if c.LastCrawledTs == 0 {
		return time.Time{}
	}
	return time.Unix(c.LastCrawledTs, 0).UTC()
}

// Message is one stored unit of crawled content. It is immutable once written.
type Message struct {
	ChannelID string `json:"channel_id"`
	MessageID int64  `json:"message_id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	PostedAt  int64  `json:"posted_at"`
}

// DocID is the search document id derived from the store key.
func (m Message) DocID() string {
	return DocID(m.ChannelID, m.MessageID)
}

// DocID formats the compound identity shared by the store key and the search document.
func DocID(channelID string, messageID int64) string {
	return fmt.Sprintf("%s:%d", channelID, messageID)
}

// PlatformMessage is a message as returned by the source platform.
type PlatformMessage struct {
	ID     int64  `json:"id"`
	Date   int64  `json:"date"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// FetchWindow bounds a page request. Ids are exclusive; MaxID == 0 means unbounded.
type FetchWindow struct {
	MinID int64
	MaxID int64
	Limit int
}

// ChannelQuery filters ListChannels. An empty Status matches every channel.
type ChannelQuery struct {
	Status ChannelStatus
	Limit  int
}

// ScanRequest asks the message store for the next forward page.
type ScanRequest struct {
	Limit int
	Token string
}

// ScanPage is one page of a forward scan. NextToken is empty once the scan is exhausted.
type ScanPage struct {
	Items     []Message
	NextToken string
}

// Outcome is the terminal state of one ProcessChannel invocation.
type Outcome string

// Processor outcomes.
const (
	OutcomeContinue        Outcome = "continue"
	OutcomeExhausted       Outcome = "done_exhausted"
	OutcomeEarliestReached Outcome = "done_earliest_reached"
	OutcomeFailed          Outcome = "failed"
)

// Result summarizes one ProcessChannel invocation.
type Result struct {
	ChannelID         string
	Outcome           Outcome
	Pages             int
	MessagesStored    int
	LastSeenMessageID int64
	Duration          time.Duration
}

// CrawlEvent is published after each processed channel.
type CrawlEvent struct {
	RunID             string  `json:"run_id"`
	ChannelID         string  `json:"channel_id"`
	Outcome           Outcome `json:"outcome"`
	MessagesStored    int     `json:"messages_stored"`
	LastSeenMessageID int64   `json:"last_seen_message_id"`
	CrawledAt         string  `json:"crawled_at"`
	Error             string  `json:"error,omitempty"`
}
