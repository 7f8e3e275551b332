package feed

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/ratelimit"
	"github.com/spigell/jobradar/internal/retry"
	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "jobradar/1.0"

	defaultMaxPages = 2
	defaultPerPage  = 20
	requestTimeout  = 30 * time.Second
)

// ItemResponse is one page of a search endpoint.
type ItemResponse struct {
	Items   []Item `json:"items"`
	Found   int    `json:"found"`
	Pages   int    `json:"pages"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

// HTTPOptions configure an HTTPProducer.
type HTTPOptions struct {
	Name    string
	Enabled bool
	URL     string
	APIKey  string
	// APIKeyHeader carries the key. Authorization gets a Bearer prefix.
	APIKeyHeader string
	MaxPages     int
	PerPage      int
	HTTPClient   *http.Client
	Limiter      *ratelimit.Limiter
	Retry        retry.Config
}

// HTTPProducer queries a paged JSON search API. Pages are numbered from zero.
type HTTPProducer struct {
	opts   HTTPOptions
	logger *zap.Logger
}

func NewHTTPProducer(opts HTTPOptions, log *zap.Logger) *HTTPProducer {
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = "Authorization"
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.PerPage <= 0 {
		opts.PerPage = defaultPerPage
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}

	return &HTTPProducer{
		opts:   opts,
		logger: logger.OrNop(log).Named("feed").With(zap.String(logger.FieldSource, opts.Name)),
	}
}

func (h *HTTPProducer) Name() string { return h.opts.Name }

func (h *HTTPProducer) IsAvailable() bool {
	return h.opts.Enabled && h.opts.URL != ""
}

// Fetch walks the result pages until the last one, a short page or MaxPages.
func (h *HTTPProducer) Fetch(ctx context.Context, q Query) ([]*posting.Posting, error) {
	var items []Item

	for page := 0; page < h.opts.MaxPages; page++ {
		response, err := h.fetchPage(ctx, q, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		h.logger.Debug("got page", zap.Stringer("query", q), zap.Int("page", page), zap.Int("items", len(response.Items)), zap.Int("pages", response.Pages))
		items = append(items, response.Items...)

		if len(response.Items) < h.opts.PerPage {
			break
		}
		if response.Pages > 0 && response.Page >= response.Pages-1 {
			break
		}
	}

	postings, skipped, err := Decode(items, h.opts.Name)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		h.logger.Warn("skipped records without title or url", zap.Int("count", skipped))
	}
	return postings, nil
}

func (h *HTTPProducer) fetchPage(ctx context.Context, q Query, page int) (*ItemResponse, error) {
	if err := h.opts.Limiter.Wait(ctx, h.opts.Name); err != nil {
		return nil, err
	}

	return retry.Do(ctx, h.opts.Retry, retry.IsTransient, func(ctx context.Context) (*ItemResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.URL, nil)
		if err != nil {
			return nil, err
		}
		h.setHeaders(req)
		req.URL.RawQuery = buildParams(q, page, h.opts.PerPage).Encode()

		h.logger.Debug("make request", zap.String("url", req.URL.String()))
		resp, err := h.opts.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		return h.parseItemResponse(resp)
	})
}

func (h *HTTPProducer) setHeaders(req *http.Request) {
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("User-Agent", userAgent)

	if h.opts.APIKey == "" {
		return
	}
	if h.opts.APIKeyHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+h.opts.APIKey)
		return
	}
	req.Header.Set(h.opts.APIKeyHeader, h.opts.APIKey)
}

func (h *HTTPProducer) parseItemResponse(resp *http.Response) (*ItemResponse, error) {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.StatusError{Service: h.opts.Name, Code: resp.StatusCode, Body: string(body)}
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	var response ItemResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func buildParams(q Query, page, perPage int) url.Values {
	params := url.Values{}
	params.Set("text", q.Text)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	switch {
	case q.Remote():
		params.Set("remote", "true")
	case q.Location != "":
		params.Set("location", q.Location)
	}
	return params
}
