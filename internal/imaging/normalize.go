// Package imaging prepares scanned handwriting for vision models: colour normalisation,
// contrast and sharpness boosts, speckle removal and minimum-size upscaling.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"
)

// Options controls the normalisation steps. Zero values take the defaults.
type Options struct {
	Contrast    float64 // multiplicative contrast factor, 1 = unchanged
	Sharpness   float64 // multiplicative sharpness factor, 1 = unchanged
	MedianSize  int     // odd window size of the median filter, <= 1 disables it
	MinLongSide int     // upscale target for the longer side
	MinSide     int     // hard floor applied to both sides before anything else
	JPEGQuality int
	MaxPixels   int // decoded and resized bitmaps above this many pixels are refused
}

const (
	DefaultContrast    = 1.5
	DefaultSharpness   = 1.3
	DefaultMedianSize  = 3
	DefaultMinLongSide = 512
	DefaultMinSide     = 28
	DefaultJPEGQuality = 95
	DefaultMaxPixels   = 89_478_485
)

// ErrTooManyPixels is returned when a header or a resize target exceeds the pixel limit.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

func DefaultOptions() Options {
	return Options{
		Contrast:    DefaultContrast,
		Sharpness:   DefaultSharpness,
		MedianSize:  DefaultMedianSize,
		MinLongSide: DefaultMinLongSide,
		MinSide:     DefaultMinSide,
		JPEGQuality: DefaultJPEGQuality,
		MaxPixels:   DefaultMaxPixels,
	}
}

type Normalizer struct {
	opts   Options
	logger *slog.Logger
}

func NewNormalizer(opts Options, logger *slog.Logger) *Normalizer {
	d := DefaultOptions()
	if opts.Contrast <= 0 {
		opts.Contrast = d.Contrast
	}
	if opts.Sharpness <= 0 {
		opts.Sharpness = d.Sharpness
	}
	if opts.MedianSize == 0 {
		opts.MedianSize = d.MedianSize
	}
	if opts.MinLongSide <= 0 {
		opts.MinLongSide = d.MinLongSide
	}
	if opts.MinSide <= 0 {
		opts.MinSide = d.MinSide
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = d.JPEGQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = d.MaxPixels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{opts: opts, logger: logger}
}

func (n *Normalizer) Options() Options { return n.opts }

// Normalize decodes raw, applies every enhancement step in order and re-encodes as JPEG.
// The input slice is never modified.
func (n *Normalizer) Normalize(raw []byte) ([]byte, error) {
	start := time.Now()
	if _, _, err := CheckPixels(raw, n.opts.MaxPixels); err != nil {
		return nil, err
	}
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode image: empty %dx%d bitmap", b.Dx(), b.Dy())
	}

	img, err := enforceFloor(toRGB(src), n.opts.MinSide, n.opts.MaxPixels)
	if err != nil {
		return nil, err
	}
	img = adjustContrast(img, n.opts.Contrast)
	img = adjustSharpness(img, n.opts.Sharpness)
	img = medianFilter(img, n.opts.MedianSize)
	img = upscaleLongSide(img, n.opts.MinLongSide)

	out, err := encodeJPEG(img, n.opts.JPEGQuality)
	if err != nil {
		return nil, err
	}
	nb := img.Bounds()
	n.logger.Debug("imaging.normalize.ok",
		"format", format,
		"in_w", b.Dx(), "in_h", b.Dy(),
		"out_w", nb.Dx(), "out_h", nb.Dy(),
		"in_bytes", len(raw), "out_bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// EnsureMinSize applies only the hard floor. When both sides already meet it the
// original bytes are returned unchanged. Images over DefaultMaxPixels are refused.
func EnsureMinSize(raw []byte, floor int) ([]byte, error) {
	if floor <= 0 {
		floor = DefaultMinSide
	}
	w, h, err := CheckPixels(raw, DefaultMaxPixels)
	if err != nil {
		return nil, err
	}
	if w >= floor && h >= floor {
		return raw, nil
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img, err := enforceFloor(toRGB(src), floor, DefaultMaxPixels)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img, DefaultJPEGQuality)
}

// Dimensions reads only the image header.
func Dimensions(raw []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// CheckPixels reads the header of raw and fails with ErrTooManyPixels when the image holds
// more than limit pixels. A non-positive limit means DefaultMaxPixels.
func CheckPixels(raw []byte, limit int) (int, int, error) {
	w, h, err := Dimensions(raw)
	if err != nil {
		return 0, 0, err
	}
	if err := withinPixels(w, h, limit); err != nil {
		return w, h, err
	}
	return w, h, nil
}

func withinPixels(w, h, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if int64(w)*int64(h) > int64(limit) {
		return fmt.Errorf("%dx%d: %w", w, h, ErrTooManyPixels)
	}
	return nil
}

// toRGB copies src into an opaque RGBA bitmap anchored at the origin.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func enforceFloor(img *image.RGBA, floor, limit int) (*image.RGBA, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w >= floor && h >= floor {
		return img, nil
	}
	scale := float64(floor) / float64(min(w, h))
	nw := max(int(math.Ceil(float64(w)*scale)), floor)
	nh := max(int(math.Ceil(float64(h)*scale)), floor)
	if err := withinPixels(nw, nh, limit); err != nil {
		return nil, fmt.Errorf("floor resize: %w", err)
	}
	return resize(img, nw, nh), nil
}

func upscaleLongSide(img *image.RGBA, target int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	long := max(w, h)
	if long >= target {
		return img
	}
	scale := float64(target) / float64(long)
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	if w >= h {
		nw = target
	} else {
		nh = target
	}
	return resize(img, nw, nh)
}

func resize(img *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
