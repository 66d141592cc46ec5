// Package portal fetches the document listing from the CivicPlus document center.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// Fetcher performs one listing request and returns the raw JSON body.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Config describes the listing request.
type Config struct {
	Endpoint  string
	Origin    string
	Referer   string
	UserAgent string
	Form      url.Values
	Timeout   time.Duration
}

// ErrInvalidJSON is returned when the portal answers with a non-JSON body.
var ErrInvalidJSON = errors.New("portal response is not valid JSON")

// CollyFetcher posts the folder query with a colly collector.
type CollyFetcher struct {
	cfg       Config
	transport http.RoundTripper
}

// NewCollyFetcher builds a fetcher with a pooled transport shared by all attempts.
func NewCollyFetcher(cfg Config) *CollyFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CollyFetcher{cfg: cfg, transport: newHTTPTransport()}
}

// Fetch executes a single POST. Non-2xx statuses and invalid JSON are errors.
func (f *CollyFetcher) Fetch(ctx context.Context) ([]byte, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := f.buildCollector(&body, &status, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(
			http.MethodPost,
			f.cfg.Endpoint,
			strings.NewReader(f.cfg.Form.Encode()),
			nil,
			f.headers(),
		)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("portal fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			if status != 0 {
				return nil, fmt.Errorf("portal returned HTTP %d: %w", status, fetchErr)
			}
			return nil, fmt.Errorf("portal request failed: %w", fetchErr)
		}
		if err != nil {
			return nil, fmt.Errorf("portal request failed: %w", err)
		}
	}

	if status < 200 || status > 299 {
		return nil, fmt.Errorf("portal returned HTTP %d", status)
	}
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}
	return body, nil
}

func (f *CollyFetcher) buildCollector(body *[]byte, status *int, fetchErr *error) *colly.Collector {
	collector := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.WithTransport(f.transport)
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
	return collector
}

func (f *CollyFetcher) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	h.Set("X-Requested-With", "XMLHttpRequest")
	if f.cfg.Origin != "" {
		h.Set("Origin", f.cfg.Origin)
	}
	if f.cfg.Referer != "" {
		h.Set("Referer", f.cfg.Referer)
	}
	if f.cfg.UserAgent != "" {
		h.Set("User-Agent", f.cfg.UserAgent)
	}
	return h
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
