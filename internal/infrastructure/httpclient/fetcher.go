// Package httpclient implements the outbound page fetcher used when a
// request carries no usable pre-fetched HTML.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

// Fetcher retrieves page HTML over HTTP. It implements outbound.Fetcher.
type Fetcher struct {
	client  *http.Client
	cfg     config.FetchConfig
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewFetcher creates the page fetcher with a transport tuned from
// configuration.
func NewFetcher(cfg config.FetchConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:          cfg.MaxConns,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch implements outbound.Fetcher. Redirects are followed and the final
// URL is reported. Executable scripts are stripped from the page before it
// is returned; JSON-LD data blocks stay so structured cleanup can read
// them. Non-2xx responses and transport failures surface as fetch errors
// carrying the status.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*outbound.FetchResult, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, errors.NewBadRequestError(fmt.Sprintf("url %q is not a fetchable http(s) address", pageURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.NewBadRequestError("malformed url: " + err.Error())
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en;q=0.9, *;q=0.5")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.FetchCompleted("transport_error", time.Since(start))
		f.logger.Warn("Page fetch failed",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return nil, errors.NewFetchFailedError(pageURL, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.FetchCompleted("http_error", time.Since(start))
		f.logger.Warn("Page fetch returned error status",
			zap.String("url", pageURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, errors.NewFetchFailedError(pageURL, resp.StatusCode)
	}

	html, err := f.readBody(resp, pageURL)
	if err != nil {
		f.metrics.FetchCompleted("read_error", time.Since(start))
		return nil, errors.NewFetchFailedError(pageURL, resp.StatusCode)
	}
	f.metrics.FetchCompleted("success", time.Since(start))

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	f.logger.Debug("Page fetched",
		zap.String("url", pageURL),
		zap.String("final_url", finalURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(html)),
		zap.Duration("duration", time.Since(start)),
	)

	return &outbound.FetchResult{
		HTML:       stripScripts(html),
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
	}, nil
}

// readBody decodes the response body to UTF-8 and caps it at
// max_body_bytes. Pages over the cap are truncated, not rejected; the
// cleanup cascade tolerates a broken tail and recipe content sits early in
// the document on any page this size.
func (f *Fetcher) readBody(resp *http.Response, pageURL string) (string, error) {
	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode response charset: %w", err)
	}

	limit := f.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	body, err := io.ReadAll(io.LimitReader(reader, limit))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) == limit {
		f.logger.Warn("Page truncated at max body size",
			zap.String("url", pageURL),
			zap.Int64("max_body_bytes", limit),
		)
	}
	return string(body), nil
}

// stripScripts removes executable script elements. The page is returned
// unchanged when it is blank or does not parse; cleanup deals with it
// downstream.
func stripScripts(html string) string {
	if strings.TrimSpace(html) == "" {
		return html
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script").Not(`[type="application/ld+json"]`).Remove()
	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}
