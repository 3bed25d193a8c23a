package domain

import (
	"path/filepath"
	"strings"
)

const (
	// MaxUploadBytes is the hand-off ceiling for a single image
	MaxUploadBytes = 5 * 1024 * 1024

	// MaxShareBase64Length bounds the encoded side-channel body before decoding
	MaxShareBase64Length = 50 * 1024 * 1024
)

// MIME types accepted by the persistence layer
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEWebP = "image/webp"
)

// AllowedMIMETypes is the fixed allow-list
var AllowedMIMETypes = []string{MIMEPNG, MIMEJPEG, MIMEWebP}

// NormalizedImage is a validated binary blob ready for hand-off
type NormalizedImage struct {
	Bytes     []byte
	MIMEType  string
	SizeBytes int64
	FileName  string
}

// NewNormalizedImage builds an image with a coerced MIME type and a file name
// whose extension matches it.
func NewNormalizedImage(data []byte, mimeType, fileName string) *NormalizedImage {
	mt := CoerceMIMEType(mimeType)
	return &NormalizedImage{
		Bytes:     data,
		MIMEType:  mt,
		SizeBytes: int64(len(data)),
		FileName:  FileNameForMIME(fileName, mt),
	}
}

// WithinLimit reports whether the image may be handed off
func (n *NormalizedImage) WithinLimit(limit int64) bool {
	return n != nil && n.SizeBytes <= limit
}

// Release drops the local copy after ownership moved to the persistence collaborator
func (n *NormalizedImage) Release() {
	if n == nil {
		return
	}
	n.Bytes = nil
}

// IsAllowedMIME reports whether mt is in the allow-list
func IsAllowedMIME(mt string) bool {
	for _, a := range AllowedMIMETypes {
		if a == mt {
			return true
		}
	}
	return false
}

// CoerceMIMEType maps image/jpg to image/jpeg and anything outside the
// allow-list to image/png, since the bytes may still be usable pixels.
func CoerceMIMEType(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "image/jpg" || mt == "image/pjpeg" {
		return MIMEJPEG
	}
	if IsAllowedMIME(mt) {
		return mt
	}
	return MIMEPNG
}

// ExtensionForMIME returns the file extension (without dot) for an allowed MIME type
func ExtensionForMIME(mt string) string {
	switch mt {
	case MIMEJPEG:
		return "jpg"
	case MIMEWebP:
		return "webp"
	default:
		return "png"
	}
}

// FileNameForMIME replaces (or adds) the extension of name to match mt.
// An empty name becomes "screenshot.<ext>".
func FileNameForMIME(name, mt string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		name = "screenshot"
	}
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" {
		name = "screenshot"
	}
	return name + "." + ExtensionForMIME(mt)
}
