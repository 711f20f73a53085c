package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"teascan/internal/logger"
	"teascan/pkg/models"
)

const (
	// DefaultBaiduTokenURL is the client_credentials token endpoint.
	DefaultBaiduTokenURL = "https://aip.baidubce.com/oauth/2.0/token"

	// DefaultBaiduOCRURL is the high-accuracy general text recognition endpoint.
	DefaultBaiduOCRURL = "https://aip.baidubce.com/rest/2.0/ocr/v1/accurate_basic"

	// MaxBaiduImageBytes is the provider's limit on the base64-encoded image.
	MaxBaiduImageBytes = 4 * 1024 * 1024
)

// Baidu error codes meaning the presented token is no longer accepted.
const (
	baiduErrTokenInvalid = 110
	baiduErrTokenExpired = 111
)

// BaiduConfig configures BaiduOCR.
type BaiduConfig struct {
	Endpoint    string
	Credentials Credentials
	HTTPClient  *http.Client
}

// BaiduOCR recognizes text with Baidu's accurate_basic endpoint. It expects
// the transport variant of the photo.
type BaiduOCR struct {
	endpoint string
	creds    Credentials
	tokens   *TokenCache
	httpc    *http.Client
	log      zerolog.Logger
}

// baiduResponse covers both the success and the error shape.
type baiduResponse struct {
	LogID       uint64 `json:"log_id"`
	WordsResult []struct {
		Words string `json:"words"`
	} `json:"words_result"`
	WordsResultNum int    `json:"words_result_num"`
	ErrorCode      int    `json:"error_code"`
	ErrorMsg       string `json:"error_msg"`
}

// NewBaiduOCR creates a Baidu provider. tokens must be backed by the same
// credentials as cfg.
func NewBaiduOCR(cfg BaiduConfig, tokens *TokenCache) *BaiduOCR {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultBaiduOCRURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &BaiduOCR{
		endpoint: cfg.Endpoint,
		creds:    cfg.Credentials,
		tokens:   tokens,
		httpc:    cfg.HTTPClient,
		log:      logger.WithComponent("baidu-ocr"),
	}
}

// Name implements Provider.
func (b *BaiduOCR) Name() models.ProviderName { return models.ProviderBaidu }

// Recognize implements Provider.
func (b *BaiduOCR) Recognize(ctx context.Context, img *models.PreprocessedImage) (*models.RawOcrText, error) {
	const op = "Recognize"
	name := b.Name()

	token, err := b.tokens.Token(ctx, b.creds)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(img.Data)
	if len(encoded) > MaxBaiduImageBytes {
		return nil, NewError(name, op, ErrProviderRejected, nil,
			fmt.Sprintf("encoded image is %d bytes, limit %d", len(encoded), MaxBaiduImageBytes))
	}

	endpoint, err := url.Parse(b.endpoint)
	if err != nil {
		return nil, NewError(name, op, ErrProviderRejected, err, "invalid endpoint")
	}
	q := endpoint.Query()
	q.Set("access_token", token)
	endpoint.RawQuery = q.Encode()

	form := url.Values{"image": {encoded}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewError(name, op, ErrProviderRejected, err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := b.httpc.Do(req)
	if err != nil {
		return nil, NewError(name, op, ErrNetwork, err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, NewError(name, op, ErrNetwork, err, "failed to read response")
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, NewError(name, op, ErrNetwork, nil, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(body)))
	case resp.StatusCode == http.StatusUnauthorized:
		b.tokens.Invalidate()
		return nil, NewError(name, op, ErrAuth, nil, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(body)))
	case resp.StatusCode != http.StatusOK:
		return nil, NewError(name, op, ErrProviderRejected, nil, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(body)))
	}

	var parsed baiduResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewError(name, op, ErrProviderRejected, err, "malformed response")
	}

	if parsed.ErrorCode != 0 {
		details := fmt.Sprintf("error_code %d: %s", parsed.ErrorCode, parsed.ErrorMsg)
		if parsed.ErrorCode == baiduErrTokenInvalid || parsed.ErrorCode == baiduErrTokenExpired {
			b.tokens.Invalidate()
			return nil, NewError(name, op, ErrAuth, nil, details)
		}
		return nil, NewError(name, op, ErrProviderRejected, nil, details)
	}

	lines := make([]string, 0, len(parsed.WordsResult))
	for _, w := range parsed.WordsResult {
		if s := strings.TrimSpace(w.Words); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return nil, NewError(name, op, ErrEmptyResult, nil, "no words recognized")
	}

	b.log.Info().
		Uint64("log_id", parsed.LogID).
		Int("lines", len(lines)).
		Int("words_result_num", parsed.WordsResultNum).
		Dur("duration", time.Since(start)).
		Msg("Cloud recognition completed")

	return &models.RawOcrText{Lines: lines, Provider: name}, nil
}

func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
