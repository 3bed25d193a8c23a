package domain

import "fmt"

// PayloadKind is the classifier's verdict on a pending share
type PayloadKind string

const (
	PayloadURL             PayloadKind = "url"
	PayloadFreeTextWithURL PayloadKind = "free_text_with_url"
	PayloadImageData       PayloadKind = "image_data"
	PayloadUnrecognized    PayloadKind = "unrecognized"
)

// ImageRefKind says which representation an image reference points at
type ImageRefKind string

const (
	ImageRefDataURI    ImageRefKind = "data_uri"
	ImageRefRemoteURL  ImageRefKind = "remote_url"
	ImageRefContentRef ImageRefKind = "content_ref"
)

// ImageRef points into the materializer's working set
type ImageRef struct {
	Kind  ImageRefKind
	Value string // data URI, http(s) URL, or the content:// URI / marker
}

// ClassifiedPayload is the immutable result of classification.
// Exactly one of ExtractedURL / ImageRef is set unless Kind is PayloadUnrecognized.
type ClassifiedPayload struct {
	Kind         PayloadKind
	ExtractedURL string
	ImageRef     *ImageRef
	Text         string // original trimmed text, kept so a manual form can show it
}

// DevMode turns invariant violations into panics. Production builds degrade instead.
var DevMode = false

// Validate checks the one-of invariant
func (p ClassifiedPayload) Validate() error {
	hasURL := p.ExtractedURL != ""
	hasImage := p.ImageRef != nil

	switch p.Kind {
	case PayloadUnrecognized:
		return nil
	case PayloadURL, PayloadFreeTextWithURL:
		if !hasURL || hasImage {
			return fmt.Errorf("payload %s must carry only a url (url=%t image=%t)", p.Kind, hasURL, hasImage)
		}
	case PayloadImageData:
		if !hasImage || hasURL {
			return fmt.Errorf("payload %s must carry only an image ref (url=%t image=%t)", p.Kind, hasURL, hasImage)
		}
	default:
		return fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	return nil
}

// Checked enforces the invariant: panics in DevMode, otherwise degrades the
// payload to PayloadUnrecognized while keeping the raw text.
func (p ClassifiedPayload) Checked() ClassifiedPayload {
	if err := p.Validate(); err != nil {
		if DevMode {
			panic(err)
		}
		return ClassifiedPayload{Kind: PayloadUnrecognized, Text: p.Text}
	}
	return p
}

// HasURL reports whether the payload follows the URL path
func (p ClassifiedPayload) HasURL() bool {
	return p.Kind == PayloadURL || p.Kind == PayloadFreeTextWithURL
}

// HasImage reports whether the payload follows the image path
func (p ClassifiedPayload) HasImage() bool {
	return p.Kind == PayloadImageData
}
