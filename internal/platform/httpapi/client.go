// Package httpapi talks to the source platform's HTTP JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/chansearch/internal/crawler"
	"github.com/JakeFAU/chansearch/internal/metrics"
	"github.com/JakeFAU/chansearch/internal/policy/ratelimit"
)

// Config holds platform connection settings.
type Config struct {
	BaseURL        string           `mapstructure:"base_url"`
	Token          string           `mapstructure:"token"`
	UserAgent      string           `mapstructure:"user_agent"`
	Timeout        time.Duration    `mapstructure:"timeout"`
	MaxRetries     int              `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration    `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration    `mapstructure:"retry_max_delay"`
	RateLimit      ratelimit.Config `mapstructure:"rate_limit"`
}

// Client implements crawler.Platform over HTTP.
type Client struct {
	baseURL   *url.URL
	token     string
	userAgent string
	http      *http.Client
	retry     retryPolicy
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
}

type messagesResponse struct {
	Messages []crawler.PlatformMessage `json:"messages"`
}

// Connect validates cfg, checks the credentials against the account endpoint and returns a client.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	c, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.do(ctx, "GET", "/v1/me", nil, nil); err != nil {
		return nil, fmt.Errorf("verify platform credentials: %w", err)
	}
	return c, nil
}

// New builds a client without contacting the platform.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("platform.base_url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse platform.base_url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("platform.base_url must be http or https, got %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "chansearch/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   base,
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		retry:     newRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		limiter:   ratelimit.New(cfg.RateLimit),
		logger:    logger,
	}, nil
}

// FetchMessages returns up to window.Limit messages with MinID < id (< MaxID when set), newest first.
func (c *Client) FetchMessages(
	ctx context.Context,
	channelID string,
	window crawler.FetchWindow,
) ([]crawler.PlatformMessage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(window.Limit))
	query.Set("min_id", strconv.FormatInt(window.MinID, 10))
	if window.MaxID > 0 {
		query.Set("max_id", strconv.FormatInt(window.MaxID, 10))
	}
	path := "/v1/channels/" + url.PathEscape(channelID) + "/messages"

	var msgs []crawler.PlatformMessage
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx, channelID); err != nil {
			return nil, err
		}
		// Fresh per attempt so a body that failed mid-decode never leaks into the retry.
		var out messagesResponse
		err := c.do(ctx, http.MethodGet, path, query, &out)
		if err == nil {
			msgs = out.Messages
			break
		}
		if !c.retry.shouldRetry(err, attempt) {
			return nil, err
		}
		delay := c.retry.backoff(attempt)
		c.logger.Warn("platform request failed, retrying",
			zap.String("channel_id", channelID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return msgs, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := *c.baseURL
	// path is already escaped; keep RawPath so channel ids with reserved characters survive.
	u.RawPath = strings.TrimRight(u.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("%w: invalid request path %q: %v", crawler.ErrFatal, path, err)
	}
	u.Path = unescaped
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", crawler.ErrFatal, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.ObservePlatformRequest("transient")
		return fmt.Errorf("%w: %s %s: %v", crawler.ErrTransient, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp); err != nil {
		if crawler.IsTransient(err) {
			metrics.ObservePlatformRequest("transient")
		} else {
			metrics.ObservePlatformRequest("fatal")
		}
		return err
	}
	metrics.ObservePlatformRequest("ok")
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", crawler.ErrTransient, err)
	}
	return nil
}

func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
	detail := strings.TrimSpace(string(body))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: platform returned %d: %s", crawler.ErrTransient, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w: platform returned 404: %s", crawler.ErrFatal, crawler.ErrChannelNotFound, detail)
	default:
		return fmt.Errorf("%w: platform returned %d: %s", crawler.ErrFatal, resp.StatusCode, detail)
	}
}
