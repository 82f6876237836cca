// Package postgres provides a Postgres-backed channel and message store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/chansearch/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	ChannelsTable   string        `mapstructure:"channels_table"`
	MessagesTable   string        `mapstructure:"messages_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements crawler.Store on Postgres.
type Store struct {
	pool     pool
	channels string
	messages string
}

// New connects a pgx pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.ChannelsTable, cfg.MessagesTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, channelsTable, messagesTable string) (*Store, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if channelsTable == "" {
		channelsTable = "channels"
	}
	if messagesTable == "" {
		messagesTable = "messages"
	}
	for _, table := range []string{channelsTable, messagesTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Store{pool: p, channels: channelsTable, messages: messagesTable}, nil
}

// EnsureSchema creates the tables and indexes when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	last_crawled_ts BIGINT NOT NULL DEFAULT 0,
	last_seen_message_id BIGINT NOT NULL DEFAULT 0
)`, s.channels),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_status_crawled_idx ON %[1]s (status, last_crawled_ts)`, s.channels),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	channel_id TEXT NOT NULL,
	message_id BIGINT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL DEFAULT '',
	posted_at BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (channel_id, message_id)
)`, s.messages),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// GetChannel fetches a channel by id.
func (s *Store) GetChannel(ctx context.Context, id string) (crawler.Channel, error) {
	query := fmt.Sprintf(`
SELECT id, name, status, last_crawled_ts, last_seen_message_id
FROM %s
WHERE id = $1`, s.channels)
	ch, err := scanChannel(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Channel{}, crawler.ErrChannelNotFound
	}
	if err != nil {
		return crawler.Channel{}, fmt.Errorf("select channel: %w", err)
	}
	return ch, nil
}

// PutChannel upserts the full channel row.
func (s *Store) PutChannel(ctx context.Context, ch crawler.Channel) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, name, status, last_crawled_ts, last_seen_message_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	last_crawled_ts = EXCLUDED.last_crawled_ts,
	last_seen_message_id = EXCLUDED.last_seen_message_id`, s.channels)
	_, err := s.pool.Exec(ctx, query, ch.ID, ch.Name, string(ch.Status), ch.LastCrawledTs, ch.LastSeenMessageID)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

// ListChannels returns channels ordered by last crawl time, optionally filtered by status.
func (s *Store) ListChannels(ctx context.Context, q crawler.ChannelQuery) ([]crawler.Channel, error) {
	query := fmt.Sprintf(`SELECT id, name, status, last_crawled_ts, last_seen_message_id FROM %s`, s.channels)
	var args []any
	if q.Status != "" {
		args = append(args, string(q.Status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY last_crawled_ts ASC, id ASC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	channels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (crawler.Channel, error) {
		return scanChannel(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan channels: %w", err)
	}
	return channels, nil
}

// PutMessage inserts msg; an existing row with the same key is left untouched.
func (s *Store) PutMessage(ctx context.Context, msg crawler.Message) error {
	query := fmt.Sprintf(`
INSERT INTO %s (channel_id, message_id, author, text, posted_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (channel_id, message_id) DO NOTHING`, s.messages)
	if _, err := s.pool.Exec(ctx, query, msg.ChannelID, msg.MessageID, msg.Author, msg.Text, msg.PostedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ScanMessages reads the next page in (channel_id, message_id) order after req.Token.
func (s *Store) ScanMessages(ctx context.Context, req crawler.ScanRequest) (crawler.ScanPage, error) {
	if req.Limit <= 0 {
		return crawler.ScanPage{}, errors.New("scan limit must be > 0")
	}
	query := fmt.Sprintf(`SELECT channel_id, message_id, author, text, posted_at FROM %s`, s.messages)
	var args []any
	if req.Token != "" {
		channelID, messageID, err := crawler.DecodeScanToken(req.Token)
		if err != nil {
			return crawler.ScanPage{}, err
		}
		args = append(args, channelID, messageID)
		query += " WHERE (channel_id, message_id) > ($1, $2)"
	}
	args = append(args, req.Limit)
	query += fmt.Sprintf(" ORDER BY channel_id, message_id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return crawler.ScanPage{}, fmt.Errorf("scan messages: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (crawler.Message, error) {
		var m crawler.Message
		err := row.Scan(&m.ChannelID, &m.MessageID, &m.Author, &m.Text, &m.PostedAt)
		return m, err
	})
	if err != nil {
		return crawler.ScanPage{}, fmt.Errorf("read messages: %w", err)
	}
	page := crawler.ScanPage{Items: items}
	if len(items) == req.Limit {
		last := items[len(items)-1]
		page.NextToken = crawler.EncodeScanToken(last.ChannelID, last.MessageID)
	}
	return page, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func scanChannel(row pgx.Row) (crawler.Channel, error) {
	var (
		ch     crawler.Channel
		status string
	)
	if err := row.Scan(&ch.ID, &ch.Name, &status, &ch.LastCrawledTs, &ch.LastSeenMessageID); err != nil {
		return crawler.Channel{}, err
	}
	ch.Status = crawler.ChannelStatus(status)
	return ch, nil
}
