// Package fetcher downloads remote images with per-host circuit breakers.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/logging"
)

// Config configures the fetcher
type Config struct {
	// Timeout bounds a single download, headers and body included.
	Timeout time.Duration

	// MaxBytes is the largest body accepted.
	MaxBytes int64

	// FailureThreshold trips a host's breaker after this many consecutive failures.
	FailureThreshold uint32

	// Cooldown is how long a tripped breaker stays open.
	Cooldown time.Duration
}

// DefaultConfig returns the fetcher defaults
func DefaultConfig() Config {
	return Config{
		Timeout:          15 * time.Second,
		MaxBytes:         25 * 1024 * 1024,
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

type response struct {
	body        []byte
	contentType string
}

// HTTPFetcher is an ImageFetcher over net/http
type HTTPFetcher struct {
	client *http.Client
	config Config
	log    logging.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[response]
}

var _ ports.ImageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher. A nil client uses one with cfg.Timeout.
func NewHTTPFetcher(client *http.Client, cfg Config, log logging.Logger) *HTTPFetcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &HTTPFetcher{
		client:   client,
		config:   cfg,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker[response]),
	}
}

// Fetch downloads rawURL. Bodies over MaxBytes fail with PayloadTooLarge,
// which does not count against the host's breaker.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("not an http(s) url: %q", rawURL)
	}

	breaker := f.breaker(strings.ToLower(u.Host))
	res, err := breaker.Execute(func() (response, error) {
		return f.get(ctx, u.String())
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, "", fmt.Errorf("host %s is failing, not retrying yet: %w", u.Host, err)
	}
	if err != nil {
		return nil, "", err
	}
	return res.body, res.contentType, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.config.MaxBytes {
		return response{}, domain.NewError(domain.ErrPayloadTooLarge,
			fmt.Sprintf("remote image is %d bytes, limit is %d", resp.ContentLength, f.config.MaxBytes))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return response{}, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBytes {
		return response{}, domain.NewError(domain.ErrPayloadTooLarge,
			fmt.Sprintf("remote image exceeds %d bytes", f.config.MaxBytes))
	}

	return response{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

// breaker returns the circuit breaker for a host, creating it if needed
func (f *HTTPFetcher) breaker(host string) *gobreaker.CircuitBreaker[response] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     f.config.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= f.config.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsKind(err, domain.ErrPayloadTooLarge) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log.Warn(context.Background(), "fetch circuit breaker state changed",
				"host", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	cb := gobreaker.NewCircuitBreaker[response](settings)
	f.breakers[host] = cb
	return cb
}
