package services

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// embeddedURLPattern finds http(s) URLs inside free text. A match runs to the
// next whitespace; punctuation around it is kept as part of the URL.
var embeddedURLPattern = regexp.MustCompile(`(?i)https?://\S+`)

// Classify turns a pending share into a classified payload.
// It is pure: the same share always yields the same result.
func Classify(share *domain.PendingShare) domain.ClassifiedPayload {
	if share == nil {
		return domain.ClassifiedPayload{Kind: domain.PayloadUnrecognized}
	}

	if share.RawKind == domain.RawImageMarker {
		return classifyImageMarker(share.RawValue)
	}
	return classifyText(share.RawValue)
}

func classifyImageMarker(raw string) domain.ClassifiedPayload {
	v := strings.TrimSpace(raw)
	ref := &domain.ImageRef{Kind: domain.ImageRefContentRef, Value: v}

	switch {
	case strings.HasPrefix(strings.ToLower(v), "data:image"):
		ref.Kind = domain.ImageRefDataURI
	case isHTTPURL(v):
		ref.Kind = domain.ImageRefRemoteURL
	}

	return domain.ClassifiedPayload{Kind: domain.PayloadImageData, ImageRef: ref}.Checked()
}

func classifyText(raw string) domain.ClassifiedPayload {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.ClassifiedPayload{Kind: domain.PayloadUnrecognized}
	}

	// Hand-off layers sometimes deliver the whole payload percent-encoded
	candidate := text
	if decoded, ok := decodeWholeString(text); ok {
		candidate = decoded
	}

	if candidate == domain.ImageSharedMarker {
		return domain.ClassifiedPayload{
			Kind:     domain.PayloadImageData,
			ImageRef: &domain.ImageRef{Kind: domain.ImageRefContentRef, Value: candidate},
			Text:     text,
		}.Checked()
	}

	if strings.HasPrefix(strings.ToLower(candidate), "data:image") {
		return domain.ClassifiedPayload{
			Kind:     domain.PayloadImageData,
			ImageRef: &domain.ImageRef{Kind: domain.ImageRefDataURI, Value: candidate},
		}.Checked()
	}

	if isHTTPURL(candidate) {
		return domain.ClassifiedPayload{
			Kind:         domain.PayloadURL,
			ExtractedURL: candidate,
			Text:         text,
		}.Checked()
	}

	if found := firstEmbeddedURL(candidate); found != "" {
		return domain.ClassifiedPayload{
			Kind:         domain.PayloadFreeTextWithURL,
			ExtractedURL: found,
			Text:         text,
		}.Checked()
	}

	return domain.ClassifiedPayload{Kind: domain.PayloadUnrecognized, Text: text}
}

// decodeWholeString percent-decodes text when it looks fully encoded
// (e.g. "https%3A%2F%2Fyoutu.be%2Fx").
func decodeWholeString(text string) (string, bool) {
	if !strings.Contains(text, "%") || strings.ContainsAny(text, " \t\n") {
		return "", false
	}
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "http%3a") && !strings.HasPrefix(lower, "https%3a") &&
		!strings.HasPrefix(lower, "data%3a") && !strings.HasPrefix(lower, "data:image") {
		return "", false
	}
	decoded, err := url.QueryUnescape(strings.ReplaceAll(text, "+", "%2B"))
	if err != nil {
		return "", false
	}
	return decoded, decoded != text
}

// isHTTPURL reports whether s, as a whole, is an absolute http(s) URL with a host
func isHTTPURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// firstEmbeddedURL returns the earliest http(s) URL in text, or ""
func firstEmbeddedURL(text string) string {
	for _, candidate := range embeddedURLPattern.FindAllString(text, -1) {
		if isHTTPURL(candidate) {
			return candidate
		}
	}
	return ""
}
