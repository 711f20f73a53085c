package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BAIDU_API_KEY", "BAIDU_SECRET_KEY", "BAIDU_TOKEN_URL", "BAIDU_OCR_URL",
		"CLOUD_OCR_PROVIDER", "GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CREDENTIALS",
		"GOOGLE_SHEET_URL", "GOOGLE_SHEET_WORKSHEET",
		"TESSERACT_LANGUAGE", "TESSERACT_AUTO_ORIENT",
		"TRANSPORT_MAX_WIDTH", "TRANSPORT_MAX_HEIGHT", "TRANSPORT_JPEG_QUALITY",
		"OCR_SCALE", "OCR_THRESHOLD", "TOKEN_EXPIRY_MARGIN", "HTTP_TIMEOUT",
		"CUSTOM_BRANDS", "LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BAIDU_API_KEY", "key")
	t.Setenv("BAIDU_SECRET_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CloudOCRProvider != CloudProviderBaidu {
		t.Errorf("CloudOCRProvider = %q", cfg.CloudOCRProvider)
	}
	if !reflect.DeepEqual(cfg.TesseractLanguages, []string{"chi_sim"}) {
		t.Errorf("TesseractLanguages = %v", cfg.TesseractLanguages)
	}
	if !cfg.TesseractAutoOrient {
		t.Error("TesseractAutoOrient = false")
	}
	if cfg.TransportMaxWidth != 800 || cfg.TransportMaxHeight != 800 || cfg.TransportJPEGQuality != 80 {
		t.Errorf("transport = %dx%d q%d", cfg.TransportMaxWidth, cfg.TransportMaxHeight, cfg.TransportJPEGQuality)
	}
	if cfg.OCRScale != 2 || cfg.OCRThreshold != 128 {
		t.Errorf("ocr = x%d t%d", cfg.OCRScale, cfg.OCRThreshold)
	}
	if cfg.TokenExpiryMargin != 300*time.Second {
		t.Errorf("TokenExpiryMargin = %v", cfg.TokenExpiryMargin)
	}

	pre := cfg.Preprocessor()
	if pre.Transport.Quality != 0.8 || pre.Ocr.Threshold != 128 {
		t.Errorf("Preprocessor() = %+v", pre)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLOUD_OCR_PROVIDER", "None")
	t.Setenv("TESSERACT_LANGUAGE", "chi_sim+eng")
	t.Setenv("TESSERACT_AUTO_ORIENT", "false")
	t.Setenv("TOKEN_EXPIRY_MARGIN", "60")
	t.Setenv("HTTP_TIMEOUT", "1m30s")
	t.Setenv("CUSTOM_BRANDS", "瑞幸, 库迪 ,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CloudOCRProvider != CloudProviderNone {
		t.Errorf("CloudOCRProvider = %q", cfg.CloudOCRProvider)
	}
	if !reflect.DeepEqual(cfg.TesseractLanguages, []string{"chi_sim", "eng"}) {
		t.Errorf("TesseractLanguages = %v", cfg.TesseractLanguages)
	}
	if cfg.TesseractAutoOrient {
		t.Error("TesseractAutoOrient = true")
	}
	if cfg.TokenExpiryMargin != time.Minute {
		t.Errorf("TokenExpiryMargin = %v", cfg.TokenExpiryMargin)
	}
	if cfg.HTTPTimeout != 90*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if !reflect.DeepEqual(cfg.CustomBrands, []string{"瑞幸", "库迪"}) {
		t.Errorf("CustomBrands = %v", cfg.CustomBrands)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"baidu without key", map[string]string{}, "BAIDU_API_KEY"},
		{"baidu without secret", map[string]string{"BAIDU_API_KEY": "k"}, "BAIDU_SECRET_KEY"},
		{"google without credentials", map[string]string{"CLOUD_OCR_PROVIDER": "google"}, "GOOGLE_"},
		{"unknown provider", map[string]string{"CLOUD_OCR_PROVIDER": "azure"}, "CLOUD_OCR_PROVIDER"},
		{"quality out of range", map[string]string{"CLOUD_OCR_PROVIDER": "none", "TRANSPORT_JPEG_QUALITY": "101"}, "TRANSPORT_JPEG_QUALITY"},
		{"threshold out of range", map[string]string{"CLOUD_OCR_PROVIDER": "none", "OCR_THRESHOLD": "300"}, "OCR_THRESHOLD"},
		{"non-numeric width", map[string]string{"CLOUD_OCR_PROVIDER": "none", "TRANSPORT_MAX_WIDTH": "wide"}, "TRANSPORT_MAX_WIDTH"},
		{"bad duration", map[string]string{"CLOUD_OCR_PROVIDER": "none", "HTTP_TIMEOUT": "soon"}, "HTTP_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadLocalOnly_SkipsCloudCredentials(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadLocalOnly()
	if err != nil {
		t.Fatalf("LoadLocalOnly() error = %v", err)
	}
	if cfg.CloudOCRProvider != CloudProviderNone {
		t.Errorf("CloudOCRProvider = %q", cfg.CloudOCRProvider)
	}
}

func TestLoad_SheetExport(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLOUD_OCR_PROVIDER", "none")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GoogleSheetURL != "" || cfg.GoogleSheetWorksheet != "Scans" {
		t.Errorf("sheet = %q/%q", cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
	}

	t.Setenv("GOOGLE_SHEET_URL", "https://docs.google.com/spreadsheets/d/abc/edit")
	t.Setenv("GOOGLE_SHEET_WORKSHEET", "Receipts")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GoogleSheetWorksheet != "Receipts" || cfg.GoogleSheetURL == "" {
		t.Errorf("sheet = %q/%q", cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
	}
}
