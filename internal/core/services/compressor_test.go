package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/logging"
)

// noisePNG encodes random pixels, which compress badly and make a large file
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressor_PassThrough(t *testing.T) {
	c := NewCompressor(DefaultCompressionOptions(), logging.Nop())
	img := domain.NewNormalizedImage(tinyPNG(t), domain.MIMEPNG, "tiny.png")

	out, err := c.Compress(context.Background(), img)
	require.NoError(t, err)
	assert.Same(t, img, out)
	assert.Equal(t, domain.MIMEPNG, out.MIMEType)
}

func TestCompressor_ConvergesUnderCeiling(t *testing.T) {
	data := noisePNG(t, 800, 600)
	const ceiling = 60_000
	require.Greater(t, len(data), ceiling)

	c := NewCompressor(CompressionOptions{MaxBytes: ceiling, MinDimension: 64}, logging.Nop())
	out, err := c.Compress(context.Background(), domain.NewNormalizedImage(data, domain.MIMEPNG, "noise.png"))
	require.NoError(t, err)

	assert.LessOrEqual(t, out.SizeBytes, int64(ceiling))
	assert.Equal(t, domain.MIMEJPEG, out.MIMEType)
	assert.Equal(t, "noise.jpg", out.FileName)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Bytes))
	require.NoError(t, err)
	assert.LessOrEqual(t, decoded.Bounds().Dx(), 800)
}

func TestCompressor_StillTooLarge(t *testing.T) {
	data := noisePNG(t, 400, 400)
	c := NewCompressor(CompressionOptions{MaxBytes: 100, MinDimension: 320}, logging.Nop())

	_, err := c.Compress(context.Background(), domain.NewNormalizedImage(data, domain.MIMEPNG, ""))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrStillTooLarge), "got %v", err)
}

func TestCompressor_PixelCap(t *testing.T) {
	data := noisePNG(t, 400, 300)
	c := NewCompressor(CompressionOptions{MaxBytes: 1000, MaxPixels: 100_000}, logging.Nop())

	_, err := c.Compress(context.Background(), domain.NewNormalizedImage(data, domain.MIMEPNG, ""))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrStillTooLarge), "got %v", err)
	assert.Contains(t, err.Error(), "400x300")
}

func TestCompressor_UndecodableOversized(t *testing.T) {
	c := NewCompressor(CompressionOptions{MaxBytes: 4}, logging.Nop())

	_, err := c.Compress(context.Background(), domain.NewNormalizedImage([]byte("definitely not an image"), domain.MIMEPNG, ""))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrUnsupportedImage), "got %v", err)
}

func TestCompressor_Cancelled(t *testing.T) {
	data := noisePNG(t, 400, 300)
	c := NewCompressor(CompressionOptions{MaxBytes: 1000}, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Compress(ctx, domain.NewNormalizedImage(data, domain.MIMEPNG, ""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompressor_Qualities(t *testing.T) {
	c := NewCompressor(CompressionOptions{MinQuality: 30, QualityStep: 10}, logging.Nop())
	assert.Equal(t, []int{90, 80, 70, 60, 50, 40, 30}, c.Qualities())
}
