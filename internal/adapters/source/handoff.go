package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// QueryHandoffSource reads a share passed as a query string, e.g.
// "url=https%3A%2F%2Fyoutu.be%2Fx&categoryId=abc" handed over by a launcher.
type QueryHandoffSource struct {
	query    string
	consumed bool
}

func NewQueryHandoffSource(query string) *QueryHandoffSource {
	return &QueryHandoffSource{query: strings.TrimPrefix(strings.TrimSpace(query), "?")}
}

func (q *QueryHandoffSource) Kind() domain.SourceKind {
	return domain.SourceQueryHandoff
}

// TryRead parses the hand-off. url= wins over text=.
func (q *QueryHandoffSource) TryRead(ctx context.Context) (*domain.PendingShare, error) {
	if q.query == "" || q.consumed {
		return nil, nil
	}

	values, err := url.ParseQuery(q.query)
	if err != nil {
		return nil, fmt.Errorf("invalid hand-off query: %w", err)
	}

	raw := strings.TrimSpace(values.Get("url"))
	if raw == "" {
		raw = strings.TrimSpace(values.Get("text"))
	}
	if raw == "" {
		return nil, nil
	}

	kind := domain.RawText
	if raw == domain.ImageSharedMarker {
		kind = domain.RawImageMarker
	}

	return &domain.PendingShare{
		ID:           domain.ContentShareID(domain.SourceQueryHandoff, kind, raw),
		SourceKind:   domain.SourceQueryHandoff,
		RawKind:      kind,
		RawValue:     raw,
		CapturedAt:   time.Now().UTC(),
		CategoryHint: strings.TrimSpace(values.Get("categoryId")),
	}, nil
}

// Clear consumes the hand-off for the rest of the process
func (q *QueryHandoffSource) Clear(ctx context.Context, share *domain.PendingShare) error {
	q.consumed = true
	return nil
}
