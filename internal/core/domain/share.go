package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SourceKind identifies where a pending share was picked up from
type SourceKind string

const (
	SourceShareIntent  SourceKind = "share_intent"
	SourceClipboard    SourceKind = "clipboard"
	SourceQueryHandoff SourceKind = "query_handoff"
)

// RawKind tells the classifier how to read RawValue
type RawKind string

const (
	RawText        RawKind = "text"
	RawImageMarker RawKind = "image_marker"
)

// ImageSharedMarker is written as the raw value when the image body lives in the side-channel store
const ImageSharedMarker = "IMAGE_SHARED"

// Well-known side-channel keys written by the share handler
const (
	SideChannelFileName = "sharedImageFileName"
	SideChannelMimeType = "sharedImageMimeType"
	SideChannelBase64   = "sharedImageBase64"
)

// SideChannelKeys lists every key the share handler may write
var SideChannelKeys = []string{SideChannelFileName, SideChannelMimeType, SideChannelBase64}

// PendingShare is a just-received external payload, local to this device.
// It stays in its source until persistence succeeds or the user clears it.
type PendingShare struct {
	ID           string     `json:"id"`
	SourceKind   SourceKind `json:"source_kind"`
	RawKind      RawKind    `json:"raw_kind"`
	RawValue     string     `json:"raw_value"`
	CapturedAt   time.Time  `json:"captured_at"`
	CategoryHint string     `json:"category_hint,omitempty"`
}

// ContentShareID derives a stable identity for shares whose source has no
// identity of its own (clipboard, query hand-off). The same content read twice
// is the same share.
func ContentShareID(source SourceKind, kind RawKind, raw string) string {
	sum := sha256.Sum256([]byte(string(source) + "|" + string(kind) + "|" + strings.TrimSpace(raw)))
	return string(source) + "-" + hex.EncodeToString(sum[:])[:24]
}

// IsImage reports whether the share carries an image marker
func (s *PendingShare) IsImage() bool {
	return s != nil && s.RawKind == RawImageMarker
}

// Preview returns a short single-line rendition of the raw value for display
func (s *PendingShare) Preview(maxLen int) string {
	if s == nil {
		return ""
	}
	v := strings.Join(strings.Fields(s.RawValue), " ")
	if strings.HasPrefix(v, "data:") {
		if i := strings.IndexByte(v, ','); i > 0 {
			v = v[:i] + ",…"
		}
	}
	if maxLen > 3 && len(v) > maxLen {
		return v[:maxLen-3] + "..."
	}
	return v
}
