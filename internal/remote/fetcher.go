// Package remote downloads the placement rules document from its configured URL.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

const (
	userAgent = "goplacement/1.0"

	// maxDocumentSize caps how much of a response body is read (1MB).
	maxDocumentSize = 1 << 20
)

// Errors returned by Fetch. Document-shape failures wrap the rules package
// sentinels (rules.ErrMalformedDocument, rules.ErrMissingRules).
var (
	ErrNoURL            = errors.New("no config URL")
	ErrRequest          = errors.New("request failed")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrTooLarge         = errors.New("document too large")
)

// Result is a successfully fetched and parsed document.
type Result struct {
	Rules   []rules.Rule
	Skipped []rules.Skipped
}

// Fetcher performs one GET per call; it never retries or caches.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads and parses the rules document at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	ctx, span := otel.Tracer("goplacement/remote").Start(ctx, "remote.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.url", url))

	res, err := f.fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("rules.count", len(res.Rules)), attribute.Int("rules.skipped", len(res.Skipped)))
	return res, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*Result, error) {
	if url == "" {
		return nil, ErrNoURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRequest, err)
	}
	if len(body) > maxDocumentSize {
		return nil, ErrTooLarge
	}

	parsed, skipped, err := rules.ParseDocument(body)
	if err != nil {
		return nil, err
	}
	return &Result{Rules: parsed, Skipped: skipped}, nil
}

// Reason classifies a Fetch error into a short metric label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNoURL):
		return "no_url"
	case errors.Is(err, ErrUnexpectedStatus):
		return "status"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, rules.ErrMissingRules):
		return "missing_rules"
	case errors.Is(err, rules.ErrMalformedDocument):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), isTimeout(err):
		return "timeout"
	default:
		return "network"
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
