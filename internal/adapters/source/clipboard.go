package source

import (
	"context"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// ClipboardSource reads the system clipboard as a fallback share source
type ClipboardSource struct {
	read func() (string, error)
}

// NewClipboardSource returns nil when the platform has no clipboard support
func NewClipboardSource() *ClipboardSource {
	if clipboard.Unsupported {
		return nil
	}
	return &ClipboardSource{read: clipboard.ReadAll}
}

func (c *ClipboardSource) Kind() domain.SourceKind {
	return domain.SourceClipboard
}

// TryRead returns the clipboard text as a share. Shares from the clipboard
// have a content-derived identity, so the same text is the same share.
func (c *ClipboardSource) TryRead(ctx context.Context) (*domain.PendingShare, error) {
	if c == nil || c.read == nil {
		return nil, nil
	}
	text, err := c.read()
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	return &domain.PendingShare{
		ID:         domain.ContentShareID(domain.SourceClipboard, domain.RawText, text),
		SourceKind: domain.SourceClipboard,
		RawKind:    domain.RawText,
		RawValue:   text,
		CapturedAt: time.Now().UTC(),
	}, nil
}

// Clear leaves the clipboard untouched; it belongs to the user. The attempt
// tracker keeps the same content from being saved twice.
func (c *ClipboardSource) Clear(ctx context.Context, share *domain.PendingShare) error {
	return nil
}
