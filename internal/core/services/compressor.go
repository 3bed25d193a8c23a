package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/logging"
)

// DimensionSteps are the longest-edge scale factors tried in order
var DimensionSteps = []float64{1.0, 0.75, 0.5, 0.35, 0.25}

// CompressionOptions bound the search
type CompressionOptions struct {
	MaxBytes     int64
	StartQuality int
	MinQuality   int
	QualityStep  int
	MinDimension int

	// MaxPixels caps width*height before a full decode
	MaxPixels int64
}

// DefaultCompressionOptions targets the upload ceiling
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MaxBytes:     domain.MaxUploadBytes,
		StartQuality: 90,
		MinQuality:   30,
		QualityStep:  10,
		MinDimension: 320,
		MaxPixels:    40_000_000,
	}
}

// Compressor re-encodes oversized images until they fit under MaxBytes
type Compressor struct {
	opts CompressionOptions
	log  logging.Logger
}

func NewCompressor(opts CompressionOptions, log logging.Logger) *Compressor {
	def := DefaultCompressionOptions()
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.StartQuality <= 0 || opts.StartQuality > 100 {
		opts.StartQuality = def.StartQuality
	}
	if opts.QualityStep <= 0 {
		opts.QualityStep = def.QualityStep
	}
	if opts.MinQuality <= 0 || opts.MinQuality > opts.StartQuality {
		opts.MinQuality = def.MinQuality
		if opts.MinQuality > opts.StartQuality {
			opts.MinQuality = opts.StartQuality
		}
	}
	if opts.MinDimension <= 0 {
		opts.MinDimension = def.MinDimension
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	return &Compressor{opts: opts, log: log}
}

// Options returns the effective options
func (c *Compressor) Options() CompressionOptions {
	return c.opts
}

// Qualities returns the JPEG qualities tried at each dimension step
func (c *Compressor) Qualities() []int {
	var qs []int
	for q := c.opts.StartQuality; q >= c.opts.MinQuality; q -= c.opts.QualityStep {
		qs = append(qs, q)
	}
	return qs
}

type compressResult struct {
	img *domain.NormalizedImage
	err error
}

// Compress returns img unchanged when it already fits. Otherwise it runs the
// bounded search on a separate goroutine; a cancelled ctx abandons the result.
func (c *Compressor) Compress(ctx context.Context, img *domain.NormalizedImage) (*domain.NormalizedImage, error) {
	if img.WithinLimit(c.opts.MaxBytes) {
		return img, nil
	}

	done := make(chan compressResult, 1)
	go func() {
		out, err := c.search(ctx, img)
		done <- compressResult{img: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.img, r.err
	}
}

func (c *Compressor) search(ctx context.Context, img *domain.NormalizedImage) (*domain.NormalizedImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Bytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnsupportedImage,
			fmt.Sprintf("cannot decode %s image of %d bytes", img.MIMEType, img.SizeBytes), err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > c.opts.MaxPixels {
		return nil, domain.NewError(domain.ErrStillTooLarge,
			fmt.Sprintf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, c.opts.MaxPixels))
	}

	src, format, err := image.Decode(bytes.NewReader(img.Bytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnsupportedImage,
			fmt.Sprintf("cannot decode %s image of %d bytes", img.MIMEType, img.SizeBytes), err)
	}

	bounds := src.Bounds()
	longest := max(bounds.Dx(), bounds.Dy())
	qualities := c.Qualities()

	var buf bytes.Buffer
	lastEdge := -1
	attempts := 0

	for _, step := range DimensionSteps {
		edge := int(float64(longest) * step)
		if edge < c.opts.MinDimension {
			edge = min(c.opts.MinDimension, longest)
		}
		if edge == lastEdge {
			continue
		}
		lastEdge = edge

		scaled := scaleToLongestEdge(src, edge)

		for _, q := range qualities {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			buf.Reset()
			if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: q}); err != nil {
				return nil, domain.WrapError(domain.ErrUnsupportedImage, "jpeg encode failed", err)
			}
			attempts++

			if int64(buf.Len()) <= c.opts.MaxBytes {
				c.log.Debug(ctx, "image compressed",
					"format", format, "from_bytes", img.SizeBytes, "to_bytes", buf.Len(),
					"edge", edge, "quality", q, "attempts", attempts)

				out := make([]byte, buf.Len())
				copy(out, buf.Bytes())
				return domain.NewNormalizedImage(out, domain.MIMEJPEG, img.FileName), nil
			}
		}
	}

	return nil, domain.NewError(domain.ErrStillTooLarge,
		fmt.Sprintf("image still exceeds %d bytes after %d attempts", c.opts.MaxBytes, attempts))
}

func scaleToLongestEdge(src image.Image, edge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if edge >= longest || longest == 0 {
		return src
	}

	ratio := float64(edge) / float64(longest)
	nw := max(1, int(float64(w)*ratio))
	nh := max(1, int(float64(h)*ratio))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
