package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"teascan/internal/imageproc"
	"teascan/internal/logger"
	"teascan/internal/ocr"
	"teascan/internal/sheets"
)

// Cloud OCR provider selections for CLOUD_OCR_PROVIDER.
const (
	CloudProviderBaidu  = "baidu"
	CloudProviderGoogle = "google"
	CloudProviderNone   = "none"
)

type Config struct {
	// Baidu OCR Configuration
	BaiduAPIKey    string
	BaiduSecretKey string
	BaiduTokenURL  string
	BaiduOCRURL    string

	// CloudOCRProvider is baidu, google or none (local engine only)
	CloudOCRProvider string

	// Google Cloud Configuration
	GoogleApplicationCredentials string
	GoogleCredentials            string

	// Google Sheets Configuration (scan-batch export)
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Local Engine Configuration
	TesseractLanguages  []string
	TesseractAutoOrient bool

	// Preprocessing Configuration
	TransportMaxWidth    int
	TransportMaxHeight   int
	TransportJPEGQuality int
	OCRScale             int
	OCRThreshold         int

	// Network Configuration
	TokenExpiryMargin time.Duration
	HTTPTimeout       time.Duration

	// Field Extraction Configuration
	CustomBrands []string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	return load("")
}

// LoadLocalOnly is Load with the cloud provider forced to none, so no cloud
// credentials are required.
func LoadLocalOnly() (*Config, error) {
	return load(CloudProviderNone)
}

func load(providerOverride string) (*Config, error) {
	var env envReader

	config := &Config{
		BaiduAPIKey:                  getEnv("BAIDU_API_KEY", ""),
		BaiduSecretKey:               getEnv("BAIDU_SECRET_KEY", ""),
		BaiduTokenURL:                getEnv("BAIDU_TOKEN_URL", ocr.DefaultBaiduTokenURL),
		BaiduOCRURL:                  getEnv("BAIDU_OCR_URL", ocr.DefaultBaiduOCRURL),
		CloudOCRProvider:             strings.ToLower(getEnv("CLOUD_OCR_PROVIDER", CloudProviderBaidu)),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCredentials:            getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleSheetURL:               getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:         getEnv("GOOGLE_SHEET_WORKSHEET", sheets.DefaultWorksheet),
		TesseractLanguages:           splitList(getEnv("TESSERACT_LANGUAGE", ocr.DefaultTesseractLanguage), "+"),
		TesseractAutoOrient:          env.getBool("TESSERACT_AUTO_ORIENT", true),
		TransportMaxWidth:            env.getInt("TRANSPORT_MAX_WIDTH", imageproc.DefaultMaxWidth),
		TransportMaxHeight:           env.getInt("TRANSPORT_MAX_HEIGHT", imageproc.DefaultMaxHeight),
		TransportJPEGQuality:         env.getInt("TRANSPORT_JPEG_QUALITY", int(imageproc.DefaultQuality*100)),
		OCRScale:                     env.getInt("OCR_SCALE", imageproc.DefaultScale),
		OCRThreshold:                 env.getInt("OCR_THRESHOLD", imageproc.DefaultThreshold),
		TokenExpiryMargin:            env.getDuration("TOKEN_EXPIRY_MARGIN", ocr.DefaultExpiryMargin),
		HTTPTimeout:                  env.getDuration("HTTP_TIMEOUT", 30*time.Second),
		CustomBrands:                 splitList(getEnv("CUSTOM_BRANDS", ""), ","),
		LogLevel:                     getEnv("LOG_LEVEL", "info"),
		LogFormat:                    getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:                getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                    getEnv("LOG_OUTPUT", "stderr"),
	}
	if env.err != nil {
		return nil, fmt.Errorf("config validation failed: %w", env.err)
	}
	if providerOverride != "" {
		config.CloudOCRProvider = providerOverride
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.CloudOCRProvider {
	case CloudProviderBaidu:
		if c.BaiduAPIKey == "" {
			return fmt.Errorf("BAIDU_API_KEY is required")
		}
		if c.BaiduSecretKey == "" {
			return fmt.Errorf("BAIDU_SECRET_KEY is required")
		}
	case CloudProviderGoogle:
		if c.GoogleApplicationCredentials == "" && c.GoogleCredentials == "" {
			return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS is required")
		}
	case CloudProviderNone:
	default:
		return fmt.Errorf("CLOUD_OCR_PROVIDER must be one of baidu, google, none (got %q)", c.CloudOCRProvider)
	}

	if len(c.TesseractLanguages) == 0 {
		return fmt.Errorf("TESSERACT_LANGUAGE is required")
	}
	if c.TransportMaxWidth <= 0 || c.TransportMaxHeight <= 0 {
		return fmt.Errorf("TRANSPORT_MAX_WIDTH and TRANSPORT_MAX_HEIGHT must be positive")
	}
	if c.TransportJPEGQuality < 1 || c.TransportJPEGQuality > 100 {
		return fmt.Errorf("TRANSPORT_JPEG_QUALITY must be between 1 and 100")
	}
	if c.OCRScale < 1 {
		return fmt.Errorf("OCR_SCALE must be at least 1")
	}
	if c.OCRThreshold < 0 || c.OCRThreshold > 255 {
		return fmt.Errorf("OCR_THRESHOLD must be between 0 and 255")
	}
	if c.TokenExpiryMargin < 0 {
		return fmt.Errorf("TOKEN_EXPIRY_MARGIN must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// Preprocessor returns the configured image preprocessor.
func (c *Config) Preprocessor() *imageproc.Preprocessor {
	return &imageproc.Preprocessor{
		Transport: imageproc.TransportOptions{
			MaxWidth:  c.TransportMaxWidth,
			MaxHeight: c.TransportMaxHeight,
			Quality:   float64(c.TransportJPEGQuality) / 100,
		},
		Ocr: imageproc.OcrOptions{
			Scale:     c.OCRScale,
			Threshold: uint8(c.OCRThreshold),
		},
	}
}

// BaiduCredentials returns the client credentials for the token endpoint.
func (c *Config) BaiduCredentials() ocr.Credentials {
	return ocr.Credentials{APIKey: c.BaiduAPIKey, SecretKey: c.BaiduSecretKey}
}

// TesseractConfig returns the local engine settings.
func (c *Config) TesseractConfig() ocr.TesseractConfig {
	return ocr.TesseractConfig{Languages: c.TesseractLanguages, AutoOrient: c.TesseractAutoOrient}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader reads typed values and keeps the first error.
type envReader struct {
	err error
}

func (p *envReader) getInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s must be an integer: %w", key, err))
		return defaultValue
	}
	return v
}

func (p *envReader) getBool(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s must be a boolean: %w", key, err))
		return defaultValue
	}
	return v
}

// getDuration accepts Go durations ("90s", "5m") or plain seconds ("300").
func (p *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s must be a duration: %w", key, err))
		return defaultValue
	}
	return v
}

func (p *envReader) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func splitList(raw, sep string) []string {
	var out []string
	for _, item := range strings.Split(raw, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
