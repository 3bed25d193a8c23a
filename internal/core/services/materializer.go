package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/logging"
)

// Materializer turns an ImageRef into a NormalizedImage of at most the upload ceiling
type Materializer struct {
	sideChannel   ports.SideChannelStore
	fetcher       ports.ImageFetcher
	compressor    *Compressor
	maxBase64Size int
	log           logging.Logger
}

func NewMaterializer(sc ports.SideChannelStore, fetcher ports.ImageFetcher, compressor *Compressor, log logging.Logger) *Materializer {
	return &Materializer{
		sideChannel:   sc,
		fetcher:       fetcher,
		compressor:    compressor,
		maxBase64Size: domain.MaxShareBase64Length,
		log:           log,
	}
}

// SetMaxBase64Size overrides the encoded side-channel limit
func (m *Materializer) SetMaxBase64Size(n int) {
	if n > 0 {
		m.maxBase64Size = n
	}
}

// Materialize resolves ref to bytes, coerces the MIME type and compresses
// the result under the upload ceiling.
func (m *Materializer) Materialize(ctx context.Context, ref domain.ImageRef) (*domain.NormalizedImage, error) {
	var (
		img *domain.NormalizedImage
		err error
	)

	switch ref.Kind {
	case domain.ImageRefDataURI:
		img, err = m.fromDataURI(ref.Value)
	case domain.ImageRefRemoteURL:
		img, err = m.fromRemote(ctx, ref.Value)
	case domain.ImageRefContentRef:
		img, err = m.fromSideChannel(ctx)
	default:
		return nil, domain.NewError(domain.ErrUnsupportedImage, fmt.Sprintf("unknown image reference kind %q", ref.Kind))
	}
	if err != nil {
		return nil, err
	}

	m.log.Debug(ctx, "image materialized", "kind", ref.Kind, "mime", img.MIMEType, "bytes", img.SizeBytes)

	if m.compressor == nil {
		return img, nil
	}
	return m.compressor.Compress(ctx, img)
}

func (m *Materializer) fromDataURI(uri string) (*domain.NormalizedImage, error) {
	mimeType, body, err := ParseDataURI(uri)
	if err != nil {
		return nil, err
	}
	data, err := DecodeBase64(body)
	if err != nil {
		return nil, err
	}
	return domain.NewNormalizedImage(data, mimeType, ""), nil
}

func (m *Materializer) fromRemote(ctx context.Context, rawURL string) (*domain.NormalizedImage, error) {
	if m.fetcher == nil {
		return nil, domain.NewError(domain.ErrFetchFailed, "remote images are not supported here")
	}

	data, contentType, err := m.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if domain.IsKind(err, domain.ErrPayloadTooLarge) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrFetchFailed, "could not download image", err)
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return domain.NewNormalizedImage(data, contentType, remoteFileName(rawURL)), nil
}

func (m *Materializer) fromSideChannel(ctx context.Context) (*domain.NormalizedImage, error) {
	if m.sideChannel == nil {
		return nil, domain.NewError(domain.ErrMalformedEncoding, "no side-channel image")
	}

	body, ok, err := m.sideChannel.Get(ctx, domain.SideChannelBase64)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedEncoding, "side-channel read failed", err)
	}
	if !ok || body == "" {
		return nil, domain.NewError(domain.ErrMalformedEncoding, "no side-channel image")
	}
	if len(body) > m.maxBase64Size {
		return nil, domain.NewError(domain.ErrPayloadTooLarge,
			fmt.Sprintf("shared image is %d encoded bytes, limit is %d", len(body), m.maxBase64Size))
	}

	mimeType, _, _ := m.sideChannel.Get(ctx, domain.SideChannelMimeType)
	fileName, _, _ := m.sideChannel.Get(ctx, domain.SideChannelFileName)

	// Some handlers store a full data URI instead of the bare body
	if mt, b, err := ParseDataURI(body); err == nil {
		body = b
		if mimeType == "" {
			mimeType = mt
		}
	}

	data, err := DecodeBase64(body)
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return domain.NewNormalizedImage(data, mimeType, fileName), nil
}

func remoteFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
