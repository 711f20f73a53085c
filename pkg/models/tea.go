package models

import (
	"strings"
	"time"
)

// RawImage is a captured photo as handed over by the caller.
type RawImage struct {
	Data     []byte // Encoded image payload
	MIMEType string // Declared content type, e.g. image/jpeg
}

// VariantKind identifies which derivative of a RawImage a PreprocessedImage is.
type VariantKind string

const (
	// VariantTransport is bounded and JPEG-compressed for network upload.
	VariantTransport VariantKind = "transport"
	// VariantOCR is upscaled, grayscale and binarized for the local engine.
	VariantOCR VariantKind = "ocr"
)

// PreprocessedImage is a derived artifact of one RawImage. It belongs to the
// recognition call that produced it and is never cached.
type PreprocessedImage struct {
	Kind     VariantKind
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// AccessToken is a short-lived bearer credential for the cloud provider.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time // Already shortened by the cache safety margin
}

// Valid reports whether the token can still be used at now.
func (t AccessToken) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// ProviderName tags recognized text with the engine that produced it.
type ProviderName string

const (
	ProviderBaidu     ProviderName = "baidu"
	ProviderGoogle    ProviderName = "google-vision"
	ProviderTesseract ProviderName = "tesseract"
)

// RawOcrText is the line sequence returned by whichever provider succeeded.
type RawOcrText struct {
	Lines    []string     `json:"lines"`
	Provider ProviderName `json:"provider"`
}

// Text joins the recognized lines with newlines, the form the field
// extractor expects.
func (r *RawOcrText) Text() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Lines, "\n")
}

// ParsedTeaInfo holds the fields recognized from label text. A nil field
// means it was not found.
type ParsedTeaInfo struct {
	Brand *string  `json:"brand"`
	Name  *string  `json:"name"`
	Sugar *string  `json:"sugar"`
	Ice   *string  `json:"ice"`
	Price *float64 `json:"price"`
}

// Field names used in reports and logs.
const (
	FieldBrand = "brand"
	FieldName  = "name"
	FieldSugar = "sugar"
	FieldIce   = "ice"
	FieldPrice = "price"
)

// AllFields lists the recognizable fields in display order.
var AllFields = []string{FieldBrand, FieldName, FieldSugar, FieldIce, FieldPrice}

// FilledFields returns the names of non-nil fields in display order.
func (p ParsedTeaInfo) FilledFields() []string {
	var out []string
	for _, f := range AllFields {
		if p.has(f) {
			out = append(out, f)
		}
	}
	return out
}

// MissingFields returns the names of nil fields in display order.
func (p ParsedTeaInfo) MissingFields() []string {
	var out []string
	for _, f := range AllFields {
		if !p.has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Empty reports whether nothing at all was recognized.
func (p ParsedTeaInfo) Empty() bool {
	return len(p.FilledFields()) == 0
}

func (p ParsedTeaInfo) has(field string) bool {
	switch field {
	case FieldBrand:
		return p.Brand != nil
	case FieldName:
		return p.Name != nil
	case FieldSugar:
		return p.Sugar != nil
	case FieldIce:
		return p.Ice != nil
	case FieldPrice:
		return p.Price != nil
	}
	return false
}
