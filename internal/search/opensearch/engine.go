// Package opensearch bulk-loads message documents into an OpenSearch cluster.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/JakeFAU/chansearch/internal/crawler"
	"github.com/JakeFAU/chansearch/internal/indexer"
)

// Config holds cluster connection settings.
type Config struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Engine implements indexer.SearchEngine against OpenSearch.
type Engine struct {
	client *opensearch.Client
}

// New creates an Engine. transport may be nil to use the default HTTP transport.
func New(cfg Config, transport http.RoundTripper) (*Engine, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("at least one opensearch address is required")
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	return &Engine{client: client}, nil
}

type bulkAction struct {
	Index bulkTarget `json:"index"`
}

type bulkTarget struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemOutcome `json:"items"`
}

type bulkItemOutcome struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

// BulkUpsert sends one _bulk request of index actions keyed by document id, without refresh.
func (e *Engine) BulkUpsert(ctx context.Context, index string, docs []indexer.Document) error {
	if len(docs) == 0 {
		return nil
	}
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		if err := enc.Encode(bulkAction{Index: bulkTarget{Index: index, ID: doc.ID}}); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
	}

	res, err := opensearchapi.BulkRequest{
		Index:   index,
		Body:    &body,
		Refresh: "false",
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: bulk request: %v", crawler.ErrTransient, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("bulk", res)
	}
	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}
	failed := 0
	var first string
	for _, item := range parsed.Items {
		for _, outcome := range item {
			if outcome.Error == nil {
				continue
			}
			failed++
			if first == "" {
				first = fmt.Sprintf("%s: %s (%s)", outcome.ID, outcome.Error.Reason, outcome.Error.Type)
			}
		}
	}
	return fmt.Errorf("bulk request rejected %d of %d documents, first: %s", failed, len(docs), first)
}

// Refresh makes written documents visible to search.
func (e *Engine) Refresh(ctx context.Context, index string) error {
	res, err := opensearchapi.IndicesRefreshRequest{Index: []string{index}}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: refresh request: %v", crawler.ErrTransient, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return responseError("refresh", res)
	}
	return nil
}

func responseError(op string, res *opensearchapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	kind := crawler.ErrFatal
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
		kind = crawler.ErrTransient
	}
	return fmt.Errorf("%w: %s returned %d: %s", kind, op, res.StatusCode, bytes.TrimSpace(msg))
}
