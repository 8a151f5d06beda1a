// Package imaging loads raster images and prepares them for recognition.
// Preparation is limited to what measurably helps OCR throughput and quality:
// downscaling oversized captures, optional grayscale conversion, and decode
// limits that keep hostile inputs from exhausting memory.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultScaleFactor halves each axis before recognition. Halving keeps OCR
// runtime roughly proportional to a quarter of the source pixel count while
// retaining enough resolution for body text.
const DefaultScaleFactor = 0.5

// DefaultMaxPixels caps the decoded pixel count (64 megapixels).
const DefaultMaxPixels = 64 << 20

// ErrTooLarge is returned when a decoded image exceeds the configured pixel
// budget.
var ErrTooLarge = errors.New("imaging: image exceeds pixel limit")

// ErrUnsupportedFormat is returned when the payload is not a recognizable
// image.
var ErrUnsupportedFormat = errors.New("imaging: unsupported image format")

// Config controls how the Loader prepares images.
type Config struct {
	// ScaleFactor multiplies both axes before recognition. Values <= 0 are
	// treated as 1.0 (no scaling).
	ScaleFactor float64
	// MaxDimension, when > 0, further shrinks the scaled image so neither axis
	// exceeds it.
	MaxDimension int
	// MaxPixels bounds the decoded (pre-scale) pixel count. Zero means
	// DefaultMaxPixels.
	MaxPixels int
	// Grayscale converts the prepared image to 8-bit grayscale.
	Grayscale bool
	// HighQuality selects Catmull-Rom resampling instead of the cheaper
	// approximate bilinear kernel.
	HighQuality bool
}

// Frame is a prepared image together with the bookkeeping needed to map
// recognition coordinates back to the source.
type Frame struct {
	Image image.Image
	// Scale is the factor applied to the source; divide frame coordinates by
	// Scale to recover source coordinates.
	Scale  float64
	Source string
	Format string
	// SourceWidth and SourceHeight are the dimensions before scaling.
	SourceWidth  int
	SourceHeight int
}

// Loader decodes and prepares images according to its Config.
type Loader struct {
	cfg Config
}

// NewLoader constructs a Loader. The zero Config yields the default pipeline:
// half-scale, no grayscale, 64 MP decode limit.
func NewLoader(cfg Config) *Loader {
	if cfg.ScaleFactor <= 0 {
		cfg.ScaleFactor = DefaultScaleFactor
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Loader{cfg: cfg}
}

// Load reads and prepares the image at path.
func (l *Loader) Load(ctx context.Context, path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l.LoadBytes(ctx, path, data)
}

// LoadBytes decodes and prepares an in-memory image. The name is carried on
// the returned Frame for correlation and error messages only.
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfgHeader, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", name, ErrUnsupportedFormat, err)
	}
	if cfgHeader.Width*cfgHeader.Height > l.cfg.MaxPixels {
		return nil, fmt.Errorf("%w: %s is %dx%d", ErrTooLarge, name, cfgHeader.Width, cfgHeader.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", name, format, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()
	scale := l.effectiveScale(srcW, srcH)
	if scale != 1.0 {
		img = resize(img, scale, l.cfg.HighQuality)
	}
	if l.cfg.Grayscale {
		img = grayscale(img)
	}
	return &Frame{
		Image:        img,
		Scale:        scale,
		Source:       name,
		Format:       format,
		SourceWidth:  srcW,
		SourceHeight: srcH,
	}, nil
}

// effectiveScale combines ScaleFactor with the MaxDimension cap.
func (l *Loader) effectiveScale(w, h int) float64 {
	scale := l.cfg.ScaleFactor
	if l.cfg.MaxDimension > 0 {
		longest := float64(max(w, h)) * scale
		if longest > float64(l.cfg.MaxDimension) {
			scale *= float64(l.cfg.MaxDimension) / longest
		}
	}
	return scale
}

func resize(img image.Image, scale float64, highQuality bool) image.Image {
	b := img.Bounds()
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	kernel := xdraw.Interpolator(xdraw.ApproxBiLinear)
	if highQuality {
		kernel = xdraw.CatmullRom
	}
	kernel.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func grayscale(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// EncodePNG serializes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Clone returns a mutable RGBA copy of img, useful before drawing overlays.
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
