package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/metrics"
)

const allowAllRobots = "User-agent: *\nAllow: /"

var defaultRobotsBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsTransport sits under colly's robots.txt check. A robots.txt probe
// that times out or gets a 5xx is retried, and answered with an allow-all
// file once every attempt failed that way. Colly reads an unreachable
// robots.txt as disallow-all. Other requests pass through.
type robotsTransport struct {
	base    http.RoundTripper
	backoff []time.Duration
	logger  *zap.Logger
}

func newRobotsTransport(base http.RoundTripper, logger *zap.Logger) *robotsTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &robotsTransport{base: base, backoff: defaultRobotsBackoff, logger: logger}
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots transport: nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("upstream roundtrip: %w", err)
		}
		return resp, nil
	}
	return t.probe(req)
}

func (t *robotsTransport) probe(req *http.Request) (*http.Response, error) {
	var lastReason string
	for attempt := 0; attempt <= len(t.backoff); attempt++ {
		if attempt > 0 {
			if err := sleepCtx(req.Context(), t.backoff[attempt-1]); err != nil {
				return nil, fmt.Errorf("robots.txt backoff: %w", err)
			}
		}

		start := time.Now()
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		switch {
		case err != nil && !isTransient(err):
			return nil, fmt.Errorf("fetch robots.txt: %w", err)
		case err != nil:
			lastReason = err.Error()
			metrics.ObserveFetch(req.URL.String(), "robots_retry", 0, time.Since(start))
		case resp.StatusCode >= http.StatusInternalServerError:
			lastReason = resp.Status
			drain(resp)
			metrics.ObserveFetch(req.URL.String(), "robots_retry", 0, time.Since(start))
		default:
			return resp, nil
		}
	}

	t.logger.Warn("robots.txt unavailable, assuming allow-all",
		zap.String("url", req.URL.String()),
		zap.Int("attempts", len(t.backoff)+1),
		zap.String("reason", lastReason),
	)
	return allowAllResponse(req), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func allowAllResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        http.Header{"Content-Type": []string{"text/plain"}},
		Request:       req,
	}
}

// isTransient reports timeouts, including TLS handshake timeouts that some
// stacks surface only as text.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
