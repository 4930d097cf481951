// Package compress turns uploaded data-URL images into bounded-width JPEG
// data URLs. The transform is lossy and one way.
package compress

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"net/url"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks input that is not a loadable image.
var ErrDecode = errors.New("image decode failed")

const (
	DefaultMaxWidth  = 1200
	DefaultQuality   = 80
	DefaultMaxPixels = 64_000_000

	jpegMIME = "image/jpeg"
)

// Options bound the output image.
type Options struct {
	MaxWidth int
	// Quality is the JPEG quality, 1..100.
	Quality int
	// MaxPixels rejects sources whose decoded size would exceed it.
	MaxPixels int
}

// DefaultOptions mirrors the browser client: width 1200, JPEG quality 0.8.
func DefaultOptions() Options {
	return Options{MaxWidth: DefaultMaxWidth, Quality: DefaultQuality, MaxPixels: DefaultMaxPixels}
}

// Result is a compressed image.
type Result struct {
	DataURL string
	Width   int
	Height  int
	// Source dimensions and format as decoded.
	SourceWidth  int
	SourceHeight int
	SourceFormat string
}

// Compress decodes dataURL, scales it down to opts.MaxWidth keeping the
// aspect ratio and re-encodes it as a JPEG data URL.
// Every failure to read the input wraps ErrDecode.
func Compress(dataURL string, opts Options) (Result, error) {
	opts = withDefaults(opts)

	_, payload, err := ParseDataURL(dataURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Result{}, fmt.Errorf("%w: empty image %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > opts.MaxPixels {
		return Result{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, opts.MaxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), opts.MaxWidth)
	out := src
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return Result{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Result{
		DataURL:      EncodeDataURL(jpegMIME, buf.Bytes()),
		Width:        w,
		Height:       h,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		SourceFormat: format,
	}, nil
}

// ScaledSize bounds width by maxWidth, scaling height by the same factor.
func ScaledSize(width, height, maxWidth int) (int, int) {
	if width <= maxWidth {
		return width, height
	}
	h := int(math.Round(float64(height) * float64(maxWidth) / float64(width)))
	if h < 1 {
		h = 1
	}
	return maxWidth, h
}

// ParseDataURL splits "data:<mime>[;base64],<payload>" into its media type
// and decoded payload.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return "", nil, errors.New("missing data: scheme")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("missing payload separator")
	}

	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("unescape payload: %w", err)
		}
		return mime, []byte(data), nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the padding.
		var rawErr error
		if data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr != nil {
			return "", nil, fmt.Errorf("decode base64 payload: %w", err)
		}
	}
	return mime, data, nil
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func withDefaults(opts Options) Options {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return opts
}
