// Package bleve indexes message documents into embedded Bleve indexes.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/JakeFAU/chansearch/internal/indexer"
)

// Config points at the directory holding one Bleve index per index name.
type Config struct {
	// Path is the parent directory; empty keeps indexes in memory only.
	Path string `mapstructure:"path"`
}

// Engine implements indexer.SearchEngine on Bleve.
type Engine struct {
	path    string
	mu      sync.Mutex
	indexes map[string]bleve.Index
}

// New creates an Engine. Indexes are opened lazily on first use.
func New(cfg Config) (*Engine, error) {
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}
	return &Engine{path: cfg.Path, indexes: make(map[string]bleve.Index)}, nil
}

// BulkUpsert indexes docs in one Bleve batch; existing ids are replaced.
func (e *Engine) BulkUpsert(ctx context.Context, name string, docs []indexer.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx, err := e.index(name)
	if err != nil {
		return err
	}
	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("add %s to batch: %w", doc.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}
	return nil
}

// Refresh is a no-op; Bleve batches are searchable once applied.
func (e *Engine) Refresh(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := e.index(name)
	return err
}

// Count returns the number of documents in the named index.
func (e *Engine) Count(name string) (uint64, error) {
	idx, err := e.index(name)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Close closes every open index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for name, idx := range e.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index %s: %w", name, err))
		}
		delete(e.indexes, name)
	}
	return errors.Join(errs...)
}

func (e *Engine) index(name string) (bleve.Index, error) {
	if name == "" {
		return nil, errors.New("index name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.indexes[name]; ok {
		return idx, nil
	}

	var (
		idx bleve.Index
		err error
	)
	if e.path == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		path := filepath.Join(e.path, name)
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", name, err)
	}
	e.indexes[name] = idx
	return idx, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = "en"

	keywordField := bleve.NewKeywordFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("author", keywordField)
	docMapping.AddFieldMappingsAt("channel_id", keywordField)
	docMapping.AddFieldMappingsAt("message_id", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("posted_at", bleve.NewNumericFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
