package services

import (
	"context"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/logging"
)

// SourcePrecedence is the fixed order sources are consulted in
var SourcePrecedence = []domain.SourceKind{
	domain.SourceShareIntent,
	domain.SourceClipboard,
	domain.SourceQueryHandoff,
}

// SourceChain consults payload sources in precedence order
type SourceChain struct {
	sources  []ports.PayloadSource
	attempts ports.AttemptTracker
	log      logging.Logger
}

// NewSourceChain orders the given sources by SourcePrecedence. Nil sources are
// skipped, so callers can leave out the clipboard on platforms without one.
func NewSourceChain(log logging.Logger, sources ...ports.PayloadSource) *SourceChain {
	ordered := make([]ports.PayloadSource, 0, len(sources))
	for _, kind := range SourcePrecedence {
		for _, s := range sources {
			if s != nil && s.Kind() == kind {
				ordered = append(ordered, s)
				break
			}
		}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &SourceChain{sources: ordered, log: log}
}

// SkipSaved makes Read pass over shares whose recorded attempt reached
// StateSaved. Sources like the clipboard cannot delete what they hold, so the
// attempt record is what marks their content as consumed.
func (c *SourceChain) SkipSaved(attempts ports.AttemptTracker) *SourceChain {
	c.attempts = attempts
	return c
}

// Read returns the first pending share and the source that held it.
// Each source is consulted at most once. A source that errors is treated as
// empty, and so is one whose share was already saved.
func (c *SourceChain) Read(ctx context.Context) (*domain.PendingShare, ports.PayloadSource) {
	for _, src := range c.sources {
		if ctx.Err() != nil {
			return nil, nil
		}

		share, err := src.TryRead(ctx)
		if err != nil {
			c.log.Warn(ctx, "payload source failed, treating as empty", "source", src.Kind(), "error", err)
			continue
		}
		if share == nil {
			continue
		}

		if share.SourceKind == "" {
			share.SourceKind = src.Kind()
		}
		if share.ID == "" {
			share.ID = domain.ContentShareID(share.SourceKind, share.RawKind, share.RawValue)
		}
		if c.saved(ctx, share.ID) {
			c.log.Debug(ctx, "share already saved, skipping", "source", src.Kind(), "share_id", share.ID)
			continue
		}
		c.log.Debug(ctx, "pending share found", "source", src.Kind(), "share_id", share.ID)
		return share, src
	}
	return nil, nil
}

func (c *SourceChain) saved(ctx context.Context, shareID string) bool {
	if c.attempts == nil {
		return false
	}
	rec, err := c.attempts.Lookup(ctx, shareID)
	if err != nil {
		c.log.Warn(ctx, "attempt lookup failed", "share_id", shareID, "error", err)
		return false
	}
	return rec != nil && rec.State == domain.StateSaved
}

// Source returns the configured source of the given kind, or nil
func (c *SourceChain) Source(kind domain.SourceKind) ports.PayloadSource {
	for _, s := range c.sources {
		if s.Kind() == kind {
			return s
		}
	}
	return nil
}

// Kinds lists the configured sources in the order they are consulted
func (c *SourceChain) Kinds() []domain.SourceKind {
	kinds := make([]domain.SourceKind, 0, len(c.sources))
	for _, s := range c.sources {
		kinds = append(kinds, s.Kind())
	}
	return kinds
}
