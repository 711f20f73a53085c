package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"teascan/pkg/models"
)

func newBaiduForTest(t *testing.T, handler http.HandlerFunc) (*BaiduOCR, *fakeFetcher) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fetcher := &fakeFetcher{expiresIn: time.Hour}
	tokens := NewTokenCache(fetcher)
	b := NewBaiduOCR(BaiduConfig{
		Endpoint:    srv.URL + "/rest/2.0/ocr/v1/accurate_basic",
		Credentials: testCreds,
		HTTPClient:  srv.Client(),
	}, tokens)
	return b, fetcher
}

var testImage = &models.PreprocessedImage{
	Kind:     models.VariantTransport,
	Data:     []byte("jpeg-bytes"),
	MIMEType: "image/jpeg",
}

func TestBaiduOCR_Recognize(t *testing.T) {
	b, _ := newBaiduForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.URL.Query().Get("access_token"); got != "token-1" {
			t.Errorf("access_token = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		img, err := base64.StdEncoding.DecodeString(r.PostForm.Get("image"))
		if err != nil || string(img) != "jpeg-bytes" {
			t.Errorf("image = %q (%v)", img, err)
		}
		_, _ = w.Write([]byte(`{"log_id":42,"words_result_num":3,"words_result":[{"words":"喜茶"},{"words":"  多肉葡萄 "},{"words":""},{"words":"少糖 少冰"}]}`))
	})

	got, err := b.Recognize(context.Background(), testImage)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	want := []string{"喜茶", "多肉葡萄", "少糖 少冰"}
	if !reflect.DeepEqual(got.Lines, want) {
		t.Errorf("Lines = %q, want %q", got.Lines, want)
	}
	if got.Provider != models.ProviderBaidu {
		t.Errorf("Provider = %q", got.Provider)
	}
}

func TestBaiduOCR_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"empty result", http.StatusOK, `{"log_id":1,"words_result_num":0,"words_result":[]}`, ErrEmptyResult},
		{"server error", http.StatusBadGateway, `bad gateway`, ErrNetwork},
		{"quota exceeded", http.StatusOK, `{"error_code":17,"error_msg":"Open api daily request limit reached"}`, ErrProviderRejected},
		{"image too large", http.StatusOK, `{"error_code":216202,"error_msg":"input image size error"}`, ErrProviderRejected},
		{"bad request", http.StatusBadRequest, `{}`, ErrProviderRejected},
		{"malformed body", http.StatusOK, `not json`, ErrProviderRejected},
		{"invalid token", http.StatusOK, `{"error_code":110,"error_msg":"Access token invalid or no longer valid"}`, ErrAuth},
		{"expired token", http.StatusOK, `{"error_code":111,"error_msg":"Access token expired"}`, ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newBaiduForTest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := b.Recognize(context.Background(), testImage)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Recognize() error = %v, want %v", err, tt.want)
			}
			var ocrErr *Error
			if !errors.As(err, &ocrErr) || ocrErr.Provider != models.ProviderBaidu {
				t.Errorf("error = %#v, want *Error from baidu", err)
			}
		})
	}
}

func TestBaiduOCR_AuthErrorInvalidatesToken(t *testing.T) {
	var calls int
	b, fetcher := newBaiduForTest(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"error_code":110,"error_msg":"Access token invalid or no longer valid"}`))
			return
		}
		if got := r.URL.Query().Get("access_token"); got != "token-2" {
			t.Errorf("access_token on retry = %q, want token-2", got)
		}
		_, _ = w.Write([]byte(`{"words_result":[{"words":"奶茶"}]}`))
	})

	if _, err := b.Recognize(context.Background(), testImage); !errors.Is(err, ErrAuth) {
		t.Fatalf("first Recognize() error = %v, want ErrAuth", err)
	}
	if _, err := b.Recognize(context.Background(), testImage); err != nil {
		t.Fatalf("second Recognize() error = %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("token fetches = %d, want 2", got)
	}
}

func TestBaiduOCR_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	b := NewBaiduOCR(BaiduConfig{Endpoint: url, Credentials: testCreds},
		NewTokenCache(&fakeFetcher{expiresIn: time.Hour}))

	_, err := b.Recognize(context.Background(), testImage)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Recognize() error = %v, want ErrNetwork", err)
	}
}

func TestBaiduOCR_TokenFailureSkipsRequest(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = true }))
	defer srv.Close()

	b := NewBaiduOCR(BaiduConfig{Endpoint: srv.URL, Credentials: Credentials{}},
		NewTokenCache(&fakeFetcher{expiresIn: time.Hour}))

	_, err := b.Recognize(context.Background(), testImage)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Recognize() error = %v, want ErrAuth", err)
	}
	if hit {
		t.Error("OCR endpoint called without a token")
	}
}
