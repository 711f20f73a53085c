// Package imageproc derives the two image variants the recognition pipeline
// needs from one captured photo:
//
//   - the transport variant, bounded in size and JPEG-compressed for upload
//     to a cloud OCR service
//   - the OCR variant, upscaled and binarized to pure black and white, which
//     helps the local engine segment characters on printed labels
//
// Both operations are pure functions of their input.
package imageproc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
	"teascan/internal/logger"
	"teascan/pkg/models"
)

const (
	// DefaultMaxWidth and DefaultMaxHeight bound the transport variant.
	DefaultMaxWidth  = 800
	DefaultMaxHeight = 800

	// DefaultQuality is the JPEG quality of the transport variant (0-1].
	DefaultQuality = 0.8

	// DefaultScale is the OCR variant upscaling factor.
	DefaultScale = 2

	// DefaultThreshold is the luminance above which a pixel becomes white.
	DefaultThreshold = 128

	// MaxOcrPixels is the default cap on the size of the upscaled OCR
	// buffer. Larger photos get a smaller scale instead of failing.
	MaxOcrPixels = 64 * 1024 * 1024
)

// TransportOptions configure ToTransportVariant.
type TransportOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
}

// DefaultTransportOptions returns 800x800 at quality 0.8.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{MaxWidth: DefaultMaxWidth, MaxHeight: DefaultMaxHeight, Quality: DefaultQuality}
}

// OcrOptions configure ToOcrVariant.
type OcrOptions struct {
	Scale     int
	Threshold uint8
	MaxPixels int64 // 0 means MaxOcrPixels
}

// DefaultOcrOptions returns 2x upscaling with a threshold of 128.
func DefaultOcrOptions() OcrOptions {
	return OcrOptions{Scale: DefaultScale, Threshold: DefaultThreshold}
}

// Preprocessor bundles configured options for use by the orchestrator.
type Preprocessor struct {
	Transport TransportOptions
	Ocr       OcrOptions
}

// NewPreprocessor returns a Preprocessor with default options.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{Transport: DefaultTransportOptions(), Ocr: DefaultOcrOptions()}
}

// TransportVariant runs ToTransportVariant with the configured options.
func (p *Preprocessor) TransportVariant(ctx context.Context, img models.RawImage) (*models.PreprocessedImage, error) {
	return ToTransportVariant(ctx, img, p.Transport)
}

// OcrVariant runs ToOcrVariant with the configured options.
func (p *Preprocessor) OcrVariant(ctx context.Context, img models.RawImage) (*models.PreprocessedImage, error) {
	return ToOcrVariant(ctx, img, p.Ocr)
}

// ToTransportVariant scales img down, preserving aspect ratio, until it fits
// within MaxWidth x MaxHeight and re-encodes it as JPEG. Images already
// within bounds keep their dimensions; nothing is ever upscaled.
func ToTransportVariant(ctx context.Context, img models.RawImage, opts TransportOptions) (*models.PreprocessedImage, error) {
	const op = "ToTransportVariant"

	src, err := decode(op, img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := src.Bounds()
	width, height := fitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)

	var out image.Image = src
	if width != b.Dx() || height != b.Dy() {
		out = imaging.Resize(src, width, height, imaging.Lanczos)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(jpegQuality(opts.Quality))); err != nil {
		return nil, newError(op, ErrEncode, err)
	}

	return &models.PreprocessedImage{
		Kind:     models.VariantTransport,
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    width,
		Height:   height,
	}, nil
}

// ToOcrVariant upscales img by Scale, converts every pixel to luminance
// 0.299R + 0.587G + 0.114B and thresholds it to 0 or 255. The result is PNG
// encoded so the binarization survives intact.
func ToOcrVariant(ctx context.Context, img models.RawImage, opts OcrOptions) (*models.PreprocessedImage, error) {
	const op = "ToOcrVariant"

	src, err := decode(op, img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := src.Bounds()
	width, height, scale := ocrSize(b.Dx(), b.Dy(), opts.Scale, opts.MaxPixels)
	if width <= 0 || height <= 0 {
		return nil, newError(op, ErrPixelBuffer, fmt.Errorf("cannot allocate %dx%d buffer", width, height))
	}
	if scale < max(opts.Scale, 1) {
		log := logger.WithComponent("imageproc")
		log.Info().
			Int("width", b.Dx()).
			Int("height", b.Dy()).
			Int("requested_scale", opts.Scale).
			Int("scale", scale).
			Int("ocr_width", width).
			Int("ocr_height", height).
			Msg("Reduced OCR upscaling to stay within the pixel limit")
	}

	var scaled *image.NRGBA
	if width == b.Dx() && height == b.Dy() {
		scaled = imaging.Clone(src)
	} else {
		scaled = imaging.Resize(src, width, height, imaging.Linear)
	}
	if scaled == nil || len(scaled.Pix) < width*height*4 {
		return nil, newError(op, ErrPixelBuffer, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bw := Binarize(scaled, opts.Threshold)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, bw, imaging.PNG); err != nil {
		return nil, newError(op, ErrEncode, err)
	}

	return &models.PreprocessedImage{
		Kind:     models.VariantOCR,
		Data:     buf.Bytes(),
		MIMEType: "image/png",
		Width:    width,
		Height:   height,
	}, nil
}

// Binarize maps every pixel to black or white by luminance. Pixels brighter
// than threshold become white; alpha is kept.
func Binarize(img image.Image, threshold uint8) *image.NRGBA {
	t := float64(threshold)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8(0)
		if Luminance(c) > t {
			v = 255
		}
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

// Luminance returns the weighted grayscale value of c.
func Luminance(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

func decode(op string, img models.RawImage) (image.Image, error) {
	if len(img.Data) == 0 {
		return nil, newError(op, ErrDecode, fmt.Errorf("empty payload (declared %q)", img.MIMEType))
	}
	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, newError(op, ErrDecode, err)
	}
	if src.Bounds().Empty() {
		return nil, newError(op, ErrPixelBuffer, fmt.Errorf("image has no pixels"))
	}
	return src, nil
}

// ocrSize picks the OCR buffer size for a w x h source. The scale is lowered
// one step at a time until the buffer fits maxPixels; a source that does not
// fit even at scale 1 is shrunk to the limit. The returned scale is 0 in that
// last case.
func ocrSize(w, h, scale int, maxPixels int64) (int, int, int) {
	if maxPixels <= 0 {
		maxPixels = MaxOcrPixels
	}
	if scale < 1 {
		scale = 1
	}
	pixels := int64(w) * int64(h)
	for scale > 1 && pixels*int64(scale)*int64(scale) > maxPixels {
		scale--
	}
	if pixels <= maxPixels {
		return w * scale, h * scale, scale
	}
	f := math.Sqrt(float64(maxPixels) / float64(pixels))
	return max(int(float64(w)*f), 1), max(int(float64(h)*f), 1), 0
}

// fitWithin returns the largest size with the aspect ratio of w x h that
// fits in maxW x maxH, never larger than w x h. Non-positive bounds are
// treated as unbounded.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	ratio := 1.0
	if maxW > 0 && w > maxW {
		ratio = math.Min(ratio, float64(maxW)/float64(w))
	}
	if maxH > 0 && h > maxH {
		ratio = math.Min(ratio, float64(maxH)/float64(h))
	}
	if ratio >= 1 {
		return w, h
	}
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	if maxW > 0 && nw > maxW {
		nw = maxW
	}
	if maxH > 0 && nh > maxH {
		nh = maxH
	}
	return max(nw, 1), max(nh, 1)
}

func jpegQuality(q float64) int {
	if q <= 0 || q > 1 {
		q = DefaultQuality
	}
	return int(math.Round(q * 100))
}
