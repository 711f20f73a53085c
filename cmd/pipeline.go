package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"teascan/internal/config"
	"teascan/internal/imageproc"
	"teascan/internal/ocr"
	"teascan/internal/parser"
	"teascan/internal/recognition"
	"teascan/pkg/models"
)

// MaxImageBytes is the largest photo accepted from disk.
const MaxImageBytes = 20 * 1024 * 1024

// pipeline holds everything a recognition command needs.
type pipeline struct {
	cfg       *config.Config
	orch      *recognition.Orchestrator
	scanner   *recognition.Scanner
	extractor *parser.Extractor
	closers   []func() error
}

func (p *pipeline) Close(log zerolog.Logger) {
	for _, c := range p.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Failed to release OCR provider")
		}
	}
}

// loadConfig loads the configuration, skipping cloud credential checks in
// local-only mode.
func loadConfig(localOnly bool, log zerolog.Logger) (*config.Config, error) {
	load := config.Load
	if localOnly {
		load = config.LoadLocalOnly
	}
	cfg, err := load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, fmt.Errorf("%w\n\nSet BAIDU_API_KEY and BAIDU_SECRET_KEY (or CLOUD_OCR_PROVIDER=google|none),\n"+
			"or pass --local-only to use the Tesseract engine alone", err)
	}
	return cfg, nil
}

// newPipeline wires the providers selected by cfg.
func newPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline, error) {
	p := &pipeline{cfg: cfg}

	tess, err := ocr.NewTesseractOCR(cfg.TesseractConfig())
	if err != nil {
		log.Error().Err(err).Strs("languages", cfg.TesseractLanguages).Msg("Failed to start Tesseract")
		return nil, fmt.Errorf("failed to start the local OCR engine. Check that tesseract and the %s trained data are installed: %w",
			strings.Join(cfg.TesseractLanguages, "+"), err)
	}
	p.closers = append(p.closers, tess.Close)

	var cloud ocr.Provider
	switch cfg.CloudOCRProvider {
	case config.CloudProviderBaidu:
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		tokens := ocr.NewTokenCache(
			&ocr.OAuth2Fetcher{TokenURL: cfg.BaiduTokenURL, HTTPClient: httpClient},
			ocr.WithExpiryMargin(cfg.TokenExpiryMargin),
			ocr.WithFetchTimeout(cfg.HTTPTimeout),
		)
		cloud = ocr.NewBaiduOCR(ocr.BaiduConfig{
			Endpoint:    cfg.BaiduOCRURL,
			Credentials: cfg.BaiduCredentials(),
			HTTPClient:  httpClient,
		}, tokens)
	case config.CloudProviderGoogle:
		vision, err := ocr.NewGoogleVisionOCR(ctx)
		if err != nil {
			p.Close(log)
			return nil, fmt.Errorf("failed to create Google Vision client: %w", err)
		}
		p.closers = append(p.closers, vision.Close)
		cloud = vision
	}

	orch, err := recognition.NewOrchestrator(cfg.Preprocessor(), cloud, tess)
	if err != nil {
		p.Close(log)
		return nil, err
	}
	p.orch = orch
	p.extractor = parser.New(parser.WithBrands(cfg.CustomBrands...))
	p.scanner = recognition.NewScanner(orch, p.extractor)

	log.Debug().
		Str("cloud_provider", cfg.CloudOCRProvider).
		Strs("languages", cfg.TesseractLanguages).
		Int("custom_brands", len(cfg.CustomBrands)).
		Msg("Recognition pipeline created")

	return p, nil
}

// readImage checks and loads a photo from disk.
func readImage(path string, log zerolog.Logger) (models.RawImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return models.RawImage{}, fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return models.RawImage{}, fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return models.RawImage{}, fmt.Errorf("error accessing image file: %w", err)
	}

	if !info.Mode().IsRegular() {
		return models.RawImage{}, fmt.Errorf("path is not a regular file: %s", path)
	}
	if info.Size() == 0 {
		return models.RawImage{}, fmt.Errorf("image file is empty: %s", path)
	}
	if info.Size() > MaxImageBytes {
		log.Error().
			Str("file", path).
			Int64("size", info.Size()).
			Int64("max_size", MaxImageBytes).
			Msg("Image file exceeds maximum size limit")
		return models.RawImage{}, fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)",
			info.Size(), MaxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawImage{}, fmt.Errorf("failed to read image file: %w", err)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		log.Warn().
			Str("file", path).
			Str("mime_type", mimeType).
			Msg("File does not look like an image")
	}

	return models.RawImage{Data: data, MIMEType: mimeType}, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling recognition")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// progressPrinter writes progress percentages to stderr.
func progressPrinter(enabled bool) func(int) {
	if !enabled {
		return nil
	}
	return func(percent int) {
		fmt.Fprintf(os.Stderr, "\rRecognizing... %3d%%", percent)
		if percent >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// handleRecognitionError provides user-friendly error messages for scan failures
func handleRecognitionError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Recognition failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("recognition timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("recognition was canceled")
	case errors.Is(err, imageproc.ErrDecode):
		return fmt.Errorf("the file could not be decoded as an image. Supported formats: JPEG, PNG, GIF, BMP, TIFF, WebP: %w", err)
	case errors.Is(err, imageproc.ErrPixelBuffer):
		return fmt.Errorf("the image has no usable pixels. Retake the photo: %w", err)
	case errors.Is(err, imageproc.ErrEncode):
		return fmt.Errorf("failed to prepare the image for OCR: %w", err)
	case errors.Is(err, recognition.ErrRecognitionFailed) && errors.Is(err, ocr.ErrAuth):
		return fmt.Errorf("no text could be read. The cloud provider rejected the credentials, "+
			"check BAIDU_API_KEY and BAIDU_SECRET_KEY:\n\n%w", err)
	case errors.Is(err, recognition.ErrRecognitionFailed) && errors.Is(err, ocr.ErrEmptyResult):
		return fmt.Errorf("no text found in the photo. Retake it closer to the label with better lighting: %w", err)
	case errors.Is(err, recognition.ErrRecognitionFailed):
		return fmt.Errorf("no text could be read by the cloud or the local engine: %w", err)
	default:
		return fmt.Errorf("recognition failed: %w", err)
	}
}
