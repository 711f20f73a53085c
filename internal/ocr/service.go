// Package ocr provides the text recognition back-ends used to read drink
// labels and receipts.
//
// Two kinds of provider implement the same contract:
//   - cloud providers (Baidu accurate_basic, or Google Cloud Vision), more
//     accurate but dependent on the network and a bearer credential
//   - a local provider (Tesseract through gosseract), offline but less
//     accurate, fed with the binarized OCR variant of the photo
//
// Baidu Environment Variables:
//   - BAIDU_API_KEY / BAIDU_SECRET_KEY: client credentials for the token endpoint
//   - BAIDU_TOKEN_URL / BAIDU_OCR_URL: endpoint overrides
//
// Google Cloud Vision uses GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS
// in the same way the rest of the toolchain does.
//
// Access tokens are cached by a TokenCache instance owned by the caller;
// nothing in this package keeps module-level state.
package ocr

import (
	"context"
	"strings"

	"teascan/pkg/models"
)

// Provider is the recognition capability: one image in, text lines out.
// Failures are reported as *Error.
type Provider interface {
	// Name identifies the provider in results and logs.
	Name() models.ProviderName

	// Recognize extracts text lines from img.
	Recognize(ctx context.Context, img *models.PreprocessedImage) (*models.RawOcrText, error)
}

// splitLines trims every line of text and drops empty ones.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
