// Package config loads and validates chansearch configuration via Viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/viper"

	"github.com/JakeFAU/chansearch/internal/logging"
	"github.com/JakeFAU/chansearch/internal/platform/httpapi"
	"github.com/JakeFAU/chansearch/internal/publisher/pubsub"
	"github.com/JakeFAU/chansearch/internal/runloop"
	"github.com/JakeFAU/chansearch/internal/search/bleve"
	"github.com/JakeFAU/chansearch/internal/search/opensearch"
	"github.com/JakeFAU/chansearch/internal/storage/gcs"
	"github.com/JakeFAU/chansearch/internal/storage/local"
	"github.com/JakeFAU/chansearch/internal/storage/postgres"
	"github.com/JakeFAU/chansearch/internal/storage/sqlite"
	"github.com/JakeFAU/chansearch/internal/telemetry"
)

// Store providers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Search providers.
const (
	SearchOpenSearch = "opensearch"
	SearchBleve      = "bleve"
)

// Archive providers.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging   logging.Config   `mapstructure:"logging"`
	Server    ServerConfig     `mapstructure:"server"`
	Store     StoreConfig      `mapstructure:"store"`
	Search    SearchConfig     `mapstructure:"search"`
	Platform  httpapi.Config   `mapstructure:"platform"`
	Crawler   CrawlerConfig    `mapstructure:"crawler"`
	Indexer   IndexerConfig    `mapstructure:"indexer"`
	Loop      LoopConfig       `mapstructure:"loop"`
	Archive   ArchiveConfig    `mapstructure:"archive"`
	PubSub    pubsub.Config    `mapstructure:"pubsub"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

// ServerConfig controls the operator HTTP endpoint.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StoreConfig selects the message store.
type StoreConfig struct {
	Provider string          `mapstructure:"provider"`
	Postgres postgres.Config `mapstructure:"postgres"`
	SQLite   sqlite.Config   `mapstructure:"sqlite"`
}

// SearchConfig selects the search engine and the target index.
type SearchConfig struct {
	Provider   string            `mapstructure:"provider"`
	Index      string            `mapstructure:"index"`
	OpenSearch opensearch.Config `mapstructure:"opensearch"`
	Bleve      bleve.Config      `mapstructure:"bleve"`
}

// CrawlerConfig governs the crawl loop.
type CrawlerConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	ChannelBatchSize int           `mapstructure:"channel_batch_size"`
	MessageBatchSize int           `mapstructure:"message_batch_size"`
	MinCrawlInterval time.Duration `mapstructure:"min_crawl_interval"`
	// EarliestTs is unix seconds or any date string dateparse understands.
	EarliestTs string `mapstructure:"earliest_ts"`
}

// IndexerConfig governs the index loop.
type IndexerConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// LoopConfig selects the overlap policy shared by both loops.
type LoopConfig struct {
	Policy string `mapstructure:"policy"`
}

// ArchiveConfig sets where raw platform pages are written.
type ArchiveConfig struct {
	Provider    string       `mapstructure:"provider"`
	Prefix      string       `mapstructure:"prefix"`
	ContentType string       `mapstructure:"content_type"`
	Local       local.Config `mapstructure:"local"`
	GCS         gcs.Config   `mapstructure:"gcs"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHANSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("store.provider", StoreSQLite)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.channels_table", "channels")
	v.SetDefault("store.postgres.messages_table", "messages")
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.min_conns", 0)
	v.SetDefault("store.postgres.max_conn_lifetime", "30m")
	v.SetDefault("store.sqlite.path", "chansearch.db")
	v.SetDefault("search.provider", SearchBleve)
	v.SetDefault("search.index", "messages")
	v.SetDefault("search.opensearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("search.opensearch.username", "")
	v.SetDefault("search.opensearch.password", "")
	v.SetDefault("search.bleve.path", "")
	v.SetDefault("platform.base_url", "")
	v.SetDefault("platform.token", "")
	v.SetDefault("platform.user_agent", "chansearch/0.1")
	v.SetDefault("platform.timeout", "15s")
	v.SetDefault("platform.max_retries", 3)
	v.SetDefault("platform.retry_base_delay", "250ms")
	v.SetDefault("platform.retry_max_delay", "5s")
	v.SetDefault("platform.rate_limit.rps", 20)
	v.SetDefault("platform.rate_limit.burst", 5)
	v.SetDefault("platform.rate_limit.channel_rps", 1)
	v.SetDefault("crawler.interval", "5s")
	v.SetDefault("crawler.channel_batch_size", 100)
	v.SetDefault("crawler.message_batch_size", 100)
	v.SetDefault("crawler.min_crawl_interval", "300s")
	v.SetDefault("crawler.earliest_ts", "1653195832")
	v.SetDefault("indexer.interval", "5m")
	v.SetDefault("indexer.batch_size", 100)
	v.SetDefault("loop.policy", string(runloop.PolicyDrift))
	v.SetDefault("archive.provider", ArchiveNone)
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "application/json")
	v.SetDefault("archive.local.base_dir", "data/archive")
	v.SetDefault("archive.gcs.bucket", "")
	v.SetDefault("archive.gcs.endpoint", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "chansearch")
	v.SetDefault("telemetry.project_id", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Store.Provider {
	case StoreMemory:
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set when store.provider is postgres")
		}
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path must be set when store.provider is sqlite")
		}
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}
	switch c.Search.Provider {
	case SearchBleve:
	case SearchOpenSearch:
		if len(c.Search.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("search.opensearch.addresses must be set when search.provider is opensearch")
		}
	default:
		return fmt.Errorf("unknown search.provider %q", c.Search.Provider)
	}
	if c.Search.Index == "" {
		return fmt.Errorf("search.index must be set")
	}
	if c.Crawler.Interval <= 0 {
		return fmt.Errorf("crawler.interval must be > 0")
	}
	if c.Crawler.ChannelBatchSize <= 0 {
		return fmt.Errorf("crawler.channel_batch_size must be > 0")
	}
	if c.Crawler.MessageBatchSize <= 0 {
		return fmt.Errorf("crawler.message_batch_size must be > 0")
	}
	if c.Crawler.MinCrawlInterval <= 0 {
		return fmt.Errorf("crawler.min_crawl_interval must be > 0")
	}
	if _, err := c.Crawler.EarliestTimestamp(); err != nil {
		return err
	}
	if c.Indexer.Interval <= 0 {
		return fmt.Errorf("indexer.interval must be > 0")
	}
	if c.Indexer.BatchSize <= 0 {
		return fmt.Errorf("indexer.batch_size must be > 0")
	}
	switch runloop.Policy(c.Loop.Policy) {
	case runloop.PolicyDrift, runloop.PolicyFixedDelay:
	default:
		return fmt.Errorf("unknown loop.policy %q", c.Loop.Policy)
	}
	switch c.Archive.Provider {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.Local.BaseDir == "" {
			return fmt.Errorf("archive.local.base_dir must be set when archive.provider is local")
		}
	case ArchiveGCS:
		if c.Archive.GCS.Bucket == "" {
			return fmt.Errorf("archive.gcs.bucket must be set when archive.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown archive.provider %q", c.Archive.Provider)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}
	return nil
}

// EarliestTimestamp resolves EarliestTs to unix seconds.
func (c CrawlerConfig) EarliestTimestamp() (int64, error) {
	raw := strings.TrimSpace(c.EarliestTs)
	if raw == "" {
		return 0, nil
	}
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ts < 0 {
			return 0, fmt.Errorf("crawler.earliest_ts must not be negative")
		}
		return ts, nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return 0, fmt.Errorf("parse crawler.earliest_ts %q: %w", raw, err)
	}
	return t.Unix(), nil
}

// PubSubEnabled reports whether crawl notifications should be published.
func (c Config) PubSubEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.TopicName != ""
}
