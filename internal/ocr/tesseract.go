package ocr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
	"teascan/internal/logger"
	"teascan/pkg/models"
)

// DefaultTesseractLanguage is simplified Chinese trained data.
const DefaultTesseractLanguage = "chi_sim"

// TesseractConfig configures the local engine.
type TesseractConfig struct {
	// Languages are Tesseract trained-data names, e.g. "chi_sim", "eng".
	Languages []string

	// AutoOrient enables orientation and script detection before
	// recognition, so rotated photos are read upright.
	AutoOrient bool
}

// DefaultTesseractConfig returns chi_sim with orientation detection enabled.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{Languages: []string{DefaultTesseractLanguage}, AutoOrient: true}
}

// TesseractOCR is the offline provider. One gosseract client is configured at
// construction and reused; calls are serialized because the client is not
// safe for concurrent use.
type TesseractOCR struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    TesseractConfig
	log    zerolog.Logger
}

// NewTesseractOCR creates and configures the engine. Call Close to release it.
func NewTesseractOCR(cfg TesseractConfig) (*TesseractOCR, error) {
	const op = "NewTesseractOCR"

	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{DefaultTesseractLanguage}
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Languages...); err != nil {
		client.Close()
		return nil, NewError(models.ProviderTesseract, op, ErrProviderRejected, err, "set languages")
	}

	mode := gosseract.PSM_AUTO
	if cfg.AutoOrient {
		mode = gosseract.PSM_AUTO_OSD
	}
	if err := client.SetPageSegMode(mode); err != nil {
		client.Close()
		return nil, NewError(models.ProviderTesseract, op, ErrProviderRejected, err, "set page segmentation mode")
	}

	return &TesseractOCR{
		client: client,
		cfg:    cfg,
		log:    logger.WithComponent("tesseract-ocr"),
	}, nil
}

// Name implements Provider.
func (t *TesseractOCR) Name() models.ProviderName { return models.ProviderTesseract }

// Recognize implements Provider. An in-flight recognition cannot be
// interrupted; ctx is only checked before it starts.
func (t *TesseractOCR) Recognize(ctx context.Context, img *models.PreprocessedImage) (*models.RawOcrText, error) {
	const op = "Recognize"
	name := t.Name()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil, NewError(name, op, ErrProviderRejected, nil, "engine closed")
	}

	start := time.Now()
	if err := t.client.SetImageFromBytes(img.Data); err != nil {
		return nil, NewError(name, op, ErrProviderRejected, err, "set image")
	}
	text, err := t.client.Text()
	if err != nil {
		return nil, NewError(name, op, ErrProviderRejected, err, fmt.Sprintf("recognize with %v", t.cfg.Languages))
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, NewError(name, op, ErrEmptyResult, nil, "no text recognized")
	}

	t.log.Info().
		Strs("languages", t.cfg.Languages).
		Int("lines", len(lines)).
		Dur("duration", time.Since(start)).
		Msg("Local recognition completed")

	return &models.RawOcrText{Lines: lines, Provider: name}, nil
}

// Close releases the engine. Further Recognize calls fail.
func (t *TesseractOCR) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
