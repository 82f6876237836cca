// Package sqlite provides an embedded single-file channel and message store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/JakeFAU/chansearch/internal/crawler"
)

// Config points at the database file.
type Config struct {
	Path string `mapstructure:"path"`
}

// Store implements crawler.Store on SQLite.
type Store struct {
	db *sqlx.DB
}

type channelRow struct {
	ID                string `db:"id"`
	Name              string `db:"name"`
	Status            string `db:"status"`
	LastCrawledTs     int64  `db:"last_crawled_ts"`
	LastSeenMessageID int64  `db:"last_seen_message_id"`
}

func (r channelRow) channel() crawler.Channel {
	return crawler.Channel{
		ID:                r.ID,
		Name:              r.Name,
		Status:            crawler.ChannelStatus(r.Status),
		LastCrawledTs:     r.LastCrawledTs,
		LastSeenMessageID: r.LastSeenMessageID,
	}
}

type messageRow struct {
	ChannelID string `db:"channel_id"`
	MessageID int64  `db:"message_id"`
	Author    string `db:"author"`
	Text      string `db:"text"`
	PostedAt  int64  `db:"posted_at"`
}

// Open opens or creates the database file and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store.sqlite.path is required")
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; WAL lets the indexer read while the crawler writes.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	store := NewWithDB(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an existing handle. The schema is not applied.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		last_crawled_ts INTEGER NOT NULL DEFAULT 0,
		last_seen_message_id INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_channels_status_crawled ON channels(status, last_crawled_ts);

	CREATE TABLE IF NOT EXISTS messages (
		channel_id TEXT NOT NULL,
		message_id INTEGER NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		posted_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (channel_id, message_id)
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// GetChannel retrieves a channel by ID.
func (s *Store) GetChannel(ctx context.Context, id string) (crawler.Channel, error) {
	query := `
	SELECT id, name, status, last_crawled_ts, last_seen_message_id
	FROM channels
	WHERE id = ?
	`
	var row channelRow
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Channel{}, crawler.ErrChannelNotFound
	}
	if err != nil {
		return crawler.Channel{}, fmt.Errorf("select channel: %w", err)
	}
	return row.channel(), nil
}

// PutChannel inserts or overwrites a channel.
func (s *Store) PutChannel(ctx context.Context, ch crawler.Channel) error {
	query := `
	INSERT INTO channels (id, name, status, last_crawled_ts, last_seen_message_id)
	VALUES (:id, :name, :status, :last_crawled_ts, :last_seen_message_id)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		status = excluded.status,
		last_crawled_ts = excluded.last_crawled_ts,
		last_seen_message_id = excluded.last_seen_message_id
	`
	row := channelRow{
		ID:                ch.ID,
		Name:              ch.Name,
		Status:            string(ch.Status),
		LastCrawledTs:     ch.LastCrawledTs,
		LastSeenMessageID: ch.LastSeenMessageID,
	}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

// ListChannels returns channels ordered by last crawl time.
func (s *Store) ListChannels(ctx context.Context, q crawler.ChannelQuery) ([]crawler.Channel, error) {
	query := "SELECT id, name, status, last_crawled_ts, last_seen_message_id FROM channels"
	var args []any
	if q.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(q.Status))
	}
	query += " ORDER BY last_crawled_ts ASC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	var rows []channelRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	out := make([]crawler.Channel, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.channel())
	}
	return out, nil
}

// PutMessage inserts msg unless the key already exists.
func (s *Store) PutMessage(ctx context.Context, msg crawler.Message) error {
	query := `
	INSERT INTO messages (channel_id, message_id, author, text, posted_at)
	VALUES (:channel_id, :message_id, :author, :text, :posted_at)
	ON CONFLICT(channel_id, message_id) DO NOTHING
	`
	row := messageRow{
		ChannelID: msg.ChannelID,
		MessageID: msg.MessageID,
		Author:    msg.Author,
		Text:      msg.Text,
		PostedAt:  msg.PostedAt,
	}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ScanMessages reads the next page in key order after req.Token.
func (s *Store) ScanMessages(ctx context.Context, req crawler.ScanRequest) (crawler.ScanPage, error) {
	if req.Limit <= 0 {
		return crawler.ScanPage{}, errors.New("scan limit must be > 0")
	}
	query := "SELECT channel_id, message_id, author, text, posted_at FROM messages"
	var args []any
	if req.Token != "" {
		channelID, messageID, err := crawler.DecodeScanToken(req.Token)
		if err != nil {
			return crawler.ScanPage{}, err
		}
		query += " WHERE (channel_id, message_id) > (?, ?)"
		args = append(args, channelID, messageID)
	}
	query += " ORDER BY channel_id, message_id LIMIT ?"
	args = append(args, req.Limit)

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return crawler.ScanPage{}, fmt.Errorf("scan messages: %w", err)
	}

	var page crawler.ScanPage
	for _, r := range rows {
		page.Items = append(page.Items, crawler.Message{
			ChannelID: r.ChannelID,
			MessageID: r.MessageID,
			Author:    r.Author,
			Text:      r.Text,
			PostedAt:  r.PostedAt,
		})
	}
	if len(page.Items) == req.Limit {
		last := page.Items[len(page.Items)-1]
		page.NextToken = crawler.EncodeScanToken(last.ChannelID, last.MessageID)
	}
	return page, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
