package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"teascan/internal/imageproc"
	"teascan/internal/ocr"
	"teascan/internal/recognition"
	"teascan/pkg/models"
	"teascan/pkg/services"
)

func TestHandleRecognitionError(t *testing.T) {
	authErr := ocr.NewError(models.ProviderBaidu, "Recognize", ocr.ErrAuth, nil, "")
	emptyErr := ocr.NewError(models.ProviderTesseract, "Recognize", ocr.ErrEmptyResult, nil, "")
	netErr := ocr.NewError(models.ProviderBaidu, "Recognize", ocr.ErrNetwork, errors.New("dial tcp"), "")

	tests := []struct {
		name     string
		err      error
		contains string
		wrapped  error
	}{
		{"timeout", fmt.Errorf("scan: %w", context.DeadlineExceeded), "timed out", nil},
		{"canceled", context.Canceled, "canceled", nil},
		{"decode", &imageproc.PreprocessError{Op: "ToTransportVariant", Kind: imageproc.ErrDecode}, "could not be decoded", imageproc.ErrDecode},
		{"pixel buffer", &imageproc.PreprocessError{Op: "ToOcrVariant", Kind: imageproc.ErrPixelBuffer}, "no usable pixels", imageproc.ErrPixelBuffer},
		{"auth", &recognition.FailedError{CloudErr: authErr, LocalErr: emptyErr}, "BAIDU_API_KEY", ocr.ErrAuth},
		{"empty", &recognition.FailedError{CloudErr: netErr, LocalErr: emptyErr}, "no text found", ocr.ErrEmptyResult},
		{"both failed", &recognition.FailedError{CloudErr: netErr, LocalErr: netErr}, "cloud or the local engine", recognition.ErrRecognitionFailed},
		{"other", errors.New("boom"), "recognition failed", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handleRecognitionError(tt.err, zerolog.Nop())
			if !strings.Contains(got.Error(), tt.contains) {
				t.Errorf("message = %q, want it to contain %q", got.Error(), tt.contains)
			}
			if tt.wrapped != nil && !errors.Is(got, tt.wrapped) {
				t.Errorf("errors.Is(%v, %v) = false", got, tt.wrapped)
			}
		})
	}
}

func TestFindImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.PNG", "c.webp", "notes.txt", "sub/d.jpeg"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := findImageFiles(dir)
	if err != nil {
		t.Fatalf("findImageFiles() error = %v", err)
	}

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f)
		names = append(names, filepath.ToSlash(rel))
	}
	sort.Strings(names)
	want := []string{"a.jpg", "b.PNG", "c.webp", "sub/d.jpeg"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("files = %v, want %v", names, want)
	}
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "label.png")
	if err := os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n0000"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := readImage(png, zerolog.Nop())
	if err != nil {
		t.Fatalf("readImage() error = %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", img.MIMEType)
	}

	tests := []struct {
		path     string
		contains string
	}{
		{filepath.Join(dir, "missing.jpg"), "not found"},
		{empty, "empty"},
		{dir, "not a regular file"},
	}
	for _, tt := range tests {
		if _, err := readImage(tt.path, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), tt.contains) {
			t.Errorf("readImage(%s) error = %v, want %q", filepath.Base(tt.path), err, tt.contains)
		}
	}
}

// fakeScanner answers by file content: "fail" errors, "partial" misses fields.
type fakeScanner struct {
	calls atomic.Int32
}

func (f *fakeScanner) Scan(ctx context.Context, img models.RawImage, progress services.ProgressFunc) (*services.ScanResult, error) {
	f.calls.Add(1)
	switch string(img.Data) {
	case "fail":
		return nil, &recognition.FailedError{
			CloudErr: ocr.NewError(models.ProviderBaidu, "Recognize", ocr.ErrNetwork, nil, ""),
			LocalErr: ocr.NewError(models.ProviderTesseract, "Recognize", ocr.ErrEmptyResult, nil, ""),
		}
	case "partial":
		return &services.ScanResult{Provider: models.ProviderTesseract, Missing: []string{models.FieldPrice}}, nil
	default:
		return &services.ScanResult{Provider: models.ProviderBaidu}, nil
	}
}

func TestScanImagesInParallel(t *testing.T) {
	dir := t.TempDir()
	contents := []string{"ok", "partial", "fail", "ok"}
	var files []string
	for i, c := range contents {
		path := filepath.Join(dir, fmt.Sprintf("%d.jpg", i))
		if err := os.WriteFile(path, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, path)
	}

	scanner := &fakeScanner{}
	results := scanImagesInParallel(context.Background(), files, scanner, 3, zerolog.Nop(), false)

	if got := scanner.calls.Load(); got != 4 {
		t.Errorf("Scan calls = %d, want 4", got)
	}
	wantStatus := []string{"success", "warning", "error", "success"}
	for i, r := range results {
		if r.Index != i || r.Filename != fmt.Sprintf("%d.jpg", i) {
			t.Errorf("results[%d] = %s (index %d), out of order", i, r.Filename, r.Index)
		}
		if r.Status != wantStatus[i] {
			t.Errorf("results[%d].Status = %q, want %q", i, r.Status, wantStatus[i])
		}
	}
	if results[2].ErrorMsg == "" || !errors.Is(results[2].Error, ocr.ErrEmptyResult) {
		t.Errorf("error result = %+v", results[2])
	}
}

func TestGetNumWorkers(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "")
	if got := getNumWorkers(); got != 4 {
		t.Errorf("default = %d", got)
	}
	t.Setenv("BATCH_WORKERS", "9")
	if got := getNumWorkers(); got != 9 {
		t.Errorf("BATCH_WORKERS=9 -> %d", got)
	}
	t.Setenv("BATCH_WORKERS", "-1")
	if got := getNumWorkers(); got != 4 {
		t.Errorf("BATCH_WORKERS=-1 -> %d", got)
	}
}
