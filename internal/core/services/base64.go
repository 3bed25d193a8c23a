package services

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// SanitizeBase64 repairs the damage share handlers commonly do to base64 text:
// percent-encoding, embedded whitespace, the URL-safe alphabet and missing padding.
// The steps run in that order.
func SanitizeBase64(s string) string {
	if strings.Contains(s, "%") {
		if decoded, err := url.PathUnescape(s); err == nil {
			s = decoded
		}
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '\f', '\v':
			return -1
		}
		return r
	}, s)

	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)

	s = strings.TrimRight(s, "=")
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return s
}

// DecodeBase64 decodes straight first, then sanitizes and retries once.
// Anything still undecodable is ErrMalformedEncoding.
func DecodeBase64(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}

	data, err := base64.StdEncoding.DecodeString(SanitizeBase64(s))
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedEncoding, "base64 payload could not be decoded", err)
	}
	return data, nil
}

// ParseDataURI splits a data URI into its MIME type and base64 body.
// Non-base64 data URIs are rejected since images are never sent as text.
func ParseDataURI(uri string) (mimeType, body string, err error) {
	uri = strings.TrimSpace(uri)
	if len(uri) < 5 || !strings.EqualFold(uri[:5], "data:") {
		return "", "", domain.NewError(domain.ErrMalformedEncoding, "not a data uri")
	}
	rest := uri[5:]

	header, body, found := strings.Cut(rest, ",")
	if !found {
		return "", "", domain.NewError(domain.ErrMalformedEncoding, "data uri has no body")
	}

	params := strings.Split(header, ";")
	mimeType = params[0]
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return "", "", domain.NewError(domain.ErrMalformedEncoding, "data uri is not base64 encoded")
	}
	return mimeType, body, nil
}
