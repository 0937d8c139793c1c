// Package transport retrieves grid documents. HTTPTransport fetches raw JSON;
// ScriptTransport fetches a callback-wrapped script and delivers the document
// through a named callback held in a Registry.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"utfgrid/internal/grid"
	"utfgrid/internal/tile"
)

var (
	ErrUnexpectedStatus   = errors.New("unexpected response status")
	ErrNoRegistry         = errors.New("script transport requires a callback registry")
	ErrCallbackNotInvoked = errors.New("script did not invoke its callback")
)

const defaultMaxBytes = 8 << 20

// DoneFunc receives the outcome of a fetch. It is called at most once.
type DoneFunc func(*grid.Document, error)

// Request describes one grid document fetch.
type Request struct {
	Key       tile.Key
	URL       string
	Callbacks *Registry
}

// Transport performs a fetch. Fetch blocks until the request settles.
type Transport interface {
	Name() string
	Fetch(ctx context.Context, req Request, done DoneFunc)
}

// HTTPTransport fetches grid documents as plain JSON.
type HTTPTransport struct {
	client   *http.Client
	sem      chan struct{}
	logger   *zap.Logger
	maxBytes int64
}

// NewHTTP creates a transport allowing at most concurrency requests in flight.
func NewHTTP(client *http.Client, concurrency int, logger *zap.Logger) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPTransport{
		client:   client,
		sem:      make(chan struct{}, concurrency),
		logger:   logger,
		maxBytes: defaultMaxBytes,
	}
}

func (t *HTTPTransport) Name() string { return "http" }

func (t *HTTPTransport) Fetch(ctx context.Context, req Request, done DoneFunc) {
	body, err := t.get(ctx, req.URL)
	if err != nil {
		done(nil, err)
		return
	}

	doc, err := grid.Parse(body)
	if err != nil {
		done(nil, fmt.Errorf("parse %s: %w", req.URL, err))
		return
	}
	done(doc, nil)
}

func (t *HTTPTransport) get(ctx context.Context, url string) ([]byte, error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-t.sem }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	t.logger.Debug("Fetched grid", zap.String("url", url), zap.Int("bytes", len(body)))
	return body, nil
}
