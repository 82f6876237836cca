// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/chansearch/internal/config"
	"github.com/JakeFAU/chansearch/internal/crawler"
	"github.com/JakeFAU/chansearch/internal/hash/sha256"
	"github.com/JakeFAU/chansearch/internal/id/uuid"
	"github.com/JakeFAU/chansearch/internal/indexer"
	"github.com/JakeFAU/chansearch/internal/platform/httpapi"
	pubsubpublisher "github.com/JakeFAU/chansearch/internal/publisher/pubsub"
	"github.com/JakeFAU/chansearch/internal/runloop"
	blevesearch "github.com/JakeFAU/chansearch/internal/search/bleve"
	"github.com/JakeFAU/chansearch/internal/search/opensearch"
	"github.com/JakeFAU/chansearch/internal/storage/gcs"
	"github.com/JakeFAU/chansearch/internal/storage/local"
	"github.com/JakeFAU/chansearch/internal/storage/memory"
	"github.com/JakeFAU/chansearch/internal/storage/postgres"
	"github.com/JakeFAU/chansearch/internal/storage/sqlite"
	"github.com/JakeFAU/chansearch/internal/telemetry"
)

// App holds the shared, long-lived services for one process. It is built once at startup and
// closed by the CLI after the command finishes.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     clockwork.Clock
	store     crawler.Store
	engine    indexer.SearchEngine
	archive   crawler.BlobStore
	publisher crawler.Publisher
	closers   []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// Option customizes NewApp.
type Option func(*App)

// WithClock overrides the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(a *App) { a.clock = clock }
}

// WithPublisher supplies the crawl notification publisher instead of building one from the pubsub
// section. The topic still comes from pubsub.topic_name.
func WithPublisher(p crawler.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// NewApp instantiates the providers selected by cfg. It fails fast if any of them cannot be built
// and releases whatever was already opened.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(a)
	}
	logger.Info("initializing application services",
		zap.String("store", cfg.Store.Provider),
		zap.String("search", cfg.Search.Provider),
		zap.String("archive", cfg.Archive.Provider),
	)

	steps := []func(context.Context) error{
		a.openTelemetry,
		a.openStore,
		a.openSearch,
		a.openArchive,
		a.openPublisher,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	logger.Info("application services initialized")
	return a, nil
}

func (a *App) track(name string, closeFn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: closeFn})
}

func (a *App) openTelemetry(ctx context.Context) error {
	shutdown, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.track("telemetry", func() error { return shutdown(context.Background()) })
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.cfg.Store.Provider {
	case config.StorePostgres:
		s, err := postgres.New(ctx, a.cfg.Store.Postgres)
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.store = s
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, a.cfg.Store.SQLite)
		if err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
		a.store = s
	case config.StoreMemory, "":
		a.logger.Warn("using in-memory store; data is lost on exit")
		a.store = memory.NewStore()
	default:
		return fmt.Errorf("unknown store provider: %s", a.cfg.Store.Provider)
	}
	a.track("store", a.store.Close)
	return nil
}

func (a *App) openSearch(context.Context) error {
	switch a.cfg.Search.Provider {
	case config.SearchOpenSearch:
		e, err := opensearch.New(a.cfg.Search.OpenSearch, otelhttp.NewTransport(http.DefaultTransport))
		if err != nil {
			return fmt.Errorf("init opensearch engine: %w", err)
		}
		a.engine = e
	case config.SearchBleve, "":
		e, err := blevesearch.New(a.cfg.Search.Bleve)
		if err != nil {
			return fmt.Errorf("init bleve engine: %w", err)
		}
		a.engine = e
		a.track("search", e.Close)
	default:
		return fmt.Errorf("unknown search provider: %s", a.cfg.Search.Provider)
	}
	return nil
}

func (a *App) openArchive(ctx context.Context) error {
	switch a.cfg.Archive.Provider {
	case config.ArchiveGCS:
		b, err := gcs.Open(ctx, a.cfg.Archive.GCS)
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.archive = b
		a.track("archive", b.Close)
	case config.ArchiveLocal:
		b, err := local.New(a.cfg.Archive.Local)
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.archive = b
	case config.ArchiveMemory:
		a.archive = memory.NewBlobStore()
	case config.ArchiveNone, "":
	default:
		return fmt.Errorf("unknown archive provider: %s", a.cfg.Archive.Provider)
	}
	return nil
}

func (a *App) openPublisher(ctx context.Context) error {
	if a.publisher != nil || !a.cfg.PubSubEnabled() {
		return nil
	}
	p, err := pubsubpublisher.Open(ctx, a.cfg.PubSub)
	if err != nil {
		return fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.publisher = p
	a.track("publisher", p.Close)
	return nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store exposes the configured message store.
func (a *App) Store() crawler.Store {
	return a.store
}

// Clock returns the clock shared by the crawler and the run loops.
func (a *App) Clock() clockwork.Clock {
	return a.clock
}

// EnsureSchema creates tables for stores that need them. It is a no-op for the memory store.
func (a *App) EnsureSchema(ctx context.Context) error {
	s, ok := a.store.(schemaEnsurer)
	if !ok {
		return nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ConnectPlatform builds the HTTP platform client and verifies its credentials.
func (a *App) ConnectPlatform(ctx context.Context) (*httpapi.Client, error) {
	client, err := httpapi.Connect(ctx, a.cfg.Platform, a.logger.Named("platform"))
	if err != nil {
		return nil, fmt.Errorf("connect platform: %w", err)
	}
	return client, nil
}

// Crawler assembles a crawl pass over platform.
func (a *App) Crawler(platform crawler.Platform) (*crawler.Crawler, error) {
	floor, err := a.cfg.Crawler.EarliestTimestamp()
	if err != nil {
		return nil, err
	}
	logger := a.logger.Named("crawler")
	scheduler := crawler.NewScheduler(a.store, a.clock, a.cfg.Crawler.MinCrawlInterval, logger)
	processor := crawler.NewProcessor(
		a.store,
		platform,
		a.archive,
		sha256.New(),
		a.clock,
		crawler.ProcessorConfig{
			MessageBatchSize:    a.cfg.Crawler.MessageBatchSize,
			EarliestTsToProcess: floor,
			ArchivePrefix:       a.cfg.Archive.Prefix,
			ArchiveContentType:  a.cfg.Archive.ContentType,
		},
		logger,
	)
	return crawler.NewCrawler(
		scheduler,
		processor,
		a.publisher,
		uuid.New(),
		a.clock,
		crawler.CrawlerConfig{
			ChannelBatchSize: a.cfg.Crawler.ChannelBatchSize,
			Topic:            a.cfg.PubSub.TopicName,
		},
		logger,
	), nil
}

// Indexer assembles the store-to-search-engine sweep.
func (a *App) Indexer() (*indexer.Indexer, error) {
	ix, err := indexer.New(a.engine, indexer.Config{
		Index:     a.cfg.Search.Index,
		BatchSize: a.cfg.Indexer.BatchSize,
	}, a.logger.Named("indexer"))
	if err != nil {
		return nil, fmt.Errorf("init indexer: %w", err)
	}
	return ix, nil
}

// CrawlWork returns the crawl loop body. The crawler logs its own pass summary.
func (a *App) CrawlWork(c *crawler.Crawler) runloop.Work {
	return func(ctx context.Context) error {
		_, err := c.RunOnce(ctx)
		return err
	}
}

// IndexWork returns the index loop body. Each iteration sweeps the store from the beginning.
func (a *App) IndexWork(ix *indexer.Indexer) runloop.Work {
	return func(ctx context.Context) error {
		_, err := ix.RunSweep(ctx, a.store)
		return err
	}
}

// NewLoop builds a run loop with the configured overlap policy.
func (a *App) NewLoop(name string, interval time.Duration) (*runloop.Loop, error) {
	return runloop.New(name, interval, runloop.Policy(a.cfg.Loop.Policy), a.clock, a.logger.Named(name))
}

// Close shuts down all services in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) == 0 {
		a.logger.Info("application services closed")
		return
	}
	a.logger.Warn("application services closed with errors", zap.Error(errors.Join(errs...)))
}
