// Package collyfetcher implements xc.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/xc-results-crawler/internal/metrics"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

const defaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	RespectRobots  bool
	Timeout        time.Duration
	MaxConcurrency int
	// Transport overrides the pooled HTTP transport. Tests inject a mock here.
	Transport http.RoundTripper
}

// Waiter gates requests per host. *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements xc.Fetcher using the Colly collector. Every request,
// listing or meet page, holds one slot of a shared semaphore.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	sem           *semaphore.Weighted
	limiter       Waiter
	logger        *zap.Logger
}

var _ xc.Fetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	logger = logger.Named("fetcher")

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	base := cfg.Transport
	if base == nil {
		base = newHTTPTransport()
	}
	if cfg.RespectRobots {
		base = newRobotsTransport(base, logger)
	}
	// Clones share the backend, so transport and timeout are set once here.
	c.WithTransport(base)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		sem:           semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		limiter:       limiter,
		logger:        logger,
	}
}

// Get fetches url and returns the response body. Network failures,
// timeouts and non-2xx responses are returned as *xc.FetchError.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, &xc.FetchError{URL: url, Err: fmt.Errorf("acquire fetch slot: %w", err)}
	}
	defer f.sem.Release(1)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return nil, &xc.FetchError{URL: url, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := f.runCollector(ctx, f.buildCollector, url)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveFetch(url, fetchStatusLabel(result.status, err), 0, duration)
		f.logger.Debug("fetch failed",
			zap.String("url", url),
			zap.Int("status", result.status),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, &xc.FetchError{URL: url, StatusCode: result.status, Err: err}
	}

	metrics.ObserveFetch(url, "ok", len(result.body), duration)
	f.logger.Debug("fetched",
		zap.String("url", url),
		zap.Int("bytes", len(result.body)),
		zap.Duration("duration", duration),
	)
	return result.body, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, result *fetchResult) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	collector.AllowURLRevisit = true
	f.configureCollectorHooks(collector, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
		}
		result.err = err
	})
}

// runCollector visits url on a fresh collector. The visit goroutine owns
// its result until it reports on done; a canceled fetch abandons it.
func (f *Fetcher) runCollector(
	ctx context.Context,
	build func(context.Context, *fetchResult) *colly.Collector,
	url string,
) (fetchResult, error) {
	done := make(chan fetchResult, 1)
	go func() {
		var result fetchResult
		collector := build(ctx, &result)
		if err := collector.Visit(url); err != nil && result.err == nil {
			result.err = err
		}
		done <- result
	}()

	select {
	case <-ctx.Done():
		return fetchResult{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case result := <-done:
		if result.err != nil {
			return result, fmt.Errorf("colly visit failed: %w", result.err)
		}
		return result, nil
	}
}

func fetchStatusLabel(status int, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case status != 0:
		return "http_error"
	default:
		return "error"
	}
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
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
	}
}
