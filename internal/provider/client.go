// Package provider talks to the third-party text-to-image service. The
// prompt is templated into the request path and the response body is the
// image.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aggressionjsk/ai-saas-app/internal/config"
	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/metrics"
)

const op = "provider.generate"

// Result is one generated image.
type Result struct {
	Data        []byte
	ContentType string
	URL         string
	Seed        int64
	Attempts    int
}

// Client generates images over HTTP.
type Client struct {
	cfg     config.ProviderConfig
	http    *http.Client
	limiter *rate.Limiter
	seed    func() int64
	logger  zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSeed replaces the random seed source.
func WithSeed(fn func() int64) Option {
	return func(c *Client) { c.seed = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(cfg config.ProviderConfig, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(limit, 1),
		seed:    func() int64 { return rand.Int64N(1_000_000_000) },
		logger:  xglog.WithComponent("provider"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL builds the request URL for prompt.
func (c *Client) URL(prompt string, seed int64) string {
	q := url.Values{}
	q.Set("width", strconv.Itoa(c.cfg.Width))
	q.Set("height", strconv.Itoa(c.cfg.Height))
	q.Set("seed", strconv.FormatInt(seed, 10))
	return c.cfg.BaseURL + url.PathEscape(prompt) + "?" + q.Encode()
}

// Generate fetches an image for prompt, retrying transient failures with
// quadratic backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (*Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, failure.Newf(failure.KindInvalid, op, "prompt is empty")
	}

	seed := c.seed()
	u := c.URL(prompt, seed)
	logger := c.logger.With().Str(xglog.FieldPrompt, prompt).Int64("seed", seed).Logger()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * c.cfg.Backoff
			logger.Debug().Err(lastErr).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying image request")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, failure.New(failure.KindCanceled, op, ctx.Err())
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, failure.New(failure.KindCanceled, op, err)
		}

		res, retry, err := c.attempt(ctx, u)
		if err == nil {
			res.Seed = seed
			res.Attempts = attempt + 1
			metrics.ProviderRequests.WithLabelValues("ok").Inc()
			logger.Info().Int("bytes", len(res.Data)).Str("content_type", res.ContentType).Msg("image generated")
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, failure.New(failure.KindCanceled, op, ctx.Err())
		}
		if !retry {
			metrics.ProviderRequests.WithLabelValues("error").Inc()
			return nil, failure.New(failure.KindFetch, op, err)
		}
		metrics.ProviderRequests.WithLabelValues("retry").Inc()
	}
	return nil, failure.New(failure.KindFetch, op,
		fmt.Errorf("failed after %d attempts: %w", c.cfg.Retries+1, lastErr))
}

// attempt performs one request. retry reports whether the failure is
// transient.
func (c *Client) attempt(ctx context.Context, u string) (_ *Result, retry bool, _ error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ProviderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		err := fmt.Errorf("unexpected status %s", resp.Status)
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, transient, err
	}

	limit := c.cfg.MaxBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, false, fmt.Errorf("image larger than %d bytes", limit)
	}
	if len(data) == 0 {
		return nil, true, errors.New("empty response body")
	}
	return &Result{Data: data, ContentType: resp.Header.Get("Content-Type"), URL: u}, false, nil
}
