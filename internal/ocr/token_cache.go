package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
	"teascan/internal/logger"
	"teascan/pkg/models"
)

// DefaultExpiryMargin is subtracted from the provider's stated lifetime so a
// token is never presented right as it expires.
const DefaultExpiryMargin = 300 * time.Second

// DefaultFetchTimeout bounds one token request. The request outlives the
// caller that started it, so it needs its own deadline.
const DefaultFetchTimeout = 30 * time.Second

// Credentials are the client credentials exchanged for an access token.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// TokenFetcher performs one token request against the provider.
type TokenFetcher interface {
	FetchToken(ctx context.Context, creds Credentials) (value string, expiresIn time.Duration, err error)
}

// TokenCache keeps the current access token and the credential pair it was
// issued for, and refreshes it once it is within the expiry margin. A token
// is only handed out for the pair it belongs to; asking for another pair
// fetches a new token, which then replaces the cached one.
//
// Concurrent callers that find the token expired share a single refresh; the
// lock is never held while the request is in flight. The refresh does not
// depend on any one caller's context, and each caller stops waiting when its
// own context is done.
type TokenCache struct {
	fetcher      TokenFetcher
	provider     models.ProviderName
	margin       time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger

	mu    sync.RWMutex
	token models.AccessToken
	creds Credentials

	refresh singleflight.Group
}

// TokenCacheOption configures a TokenCache.
type TokenCacheOption func(*TokenCache)

// WithExpiryMargin overrides DefaultExpiryMargin.
func WithExpiryMargin(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.margin = d }
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) { c.now = now }
}

// WithTokenProvider sets the provider name used in errors.
func WithTokenProvider(name models.ProviderName) TokenCacheOption {
	return func(c *TokenCache) { c.provider = name }
}

// NewTokenCache creates an empty cache backed by fetcher.
func NewTokenCache(fetcher TokenFetcher, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		fetcher:      fetcher,
		provider:     models.ProviderBaidu,
		margin:       DefaultExpiryMargin,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		log:          logger.WithComponent("token-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a valid access token for creds, fetching a new one if the
// cached token is missing, past its (margin-adjusted) expiry or issued for
// other credentials.
func (c *TokenCache) Token(ctx context.Context, creds Credentials) (string, error) {
	const op = "Token"

	if tok, ok := c.cached(creds); ok {
		return tok, nil
	}

	ch := c.refresh.DoChan(creds.APIKey+"\x00"+creds.SecretKey, func() (interface{}, error) {
		// A refresh that finished just before this flight started already
		// stored a fresh token.
		if tok, ok := c.cached(creds); ok {
			return tok, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, creds)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", NewError(c.provider, op, ErrNetwork, ctx.Err(), "gave up waiting for token")
	}
	if res.Err != nil {
		return "", res.Err
	}
	if res.Shared {
		c.log.Debug().Msg("Shared in-flight token refresh")
	}
	tok, ok := res.Val.(string)
	if !ok || tok == "" {
		return "", NewError(c.provider, op, ErrAuth, nil, "no usable token")
	}
	return tok, nil
}

func (c *TokenCache) fetch(ctx context.Context, creds Credentials) (string, error) {
	const op = "Token"

	if creds.APIKey == "" || creds.SecretKey == "" {
		return "", NewError(c.provider, op, ErrAuth, nil, "missing API key or secret key")
	}

	value, expiresIn, err := c.fetcher.FetchToken(ctx, creds)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) || errors.Is(err, ErrAuth) {
			return "", NewError(c.provider, op, ErrAuth, err, "token endpoint refused credentials")
		}
		return "", NewError(c.provider, op, ErrNetwork, err, "token request failed")
	}
	if value == "" {
		return "", NewError(c.provider, op, ErrAuth, nil, "token endpoint returned no access token")
	}

	now := c.now()
	tok := models.AccessToken{Value: value, ExpiresAt: now.Add(expiresIn - c.margin)}

	c.mu.Lock()
	c.token = tok
	c.creds = creds
	c.mu.Unlock()

	c.log.Info().
		Dur("expires_in", expiresIn).
		Time("cached_until", tok.ExpiresAt).
		Msg("Access token refreshed")

	return value, nil
}

func (c *TokenCache) cached(creds Credentials) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.creds == creds && c.token.Valid(c.now()) {
		return c.token.Value, true
	}
	return "", false
}

// Invalidate drops the cached token, e.g. after the provider reported it as
// revoked. The next Token call fetches a new one.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = models.AccessToken{}
	c.mu.Unlock()
	c.log.Debug().Msg("Access token invalidated")
}

// OAuth2Fetcher requests tokens with the OAuth2 client_credentials grant,
// sending the credentials as form parameters.
type OAuth2Fetcher struct {
	TokenURL   string
	HTTPClient *http.Client
}

// FetchToken implements TokenFetcher.
func (f *OAuth2Fetcher) FetchToken(ctx context.Context, creds Credentials) (string, time.Duration, error) {
	cfg := clientcredentials.Config{
		ClientID:     creds.APIKey,
		ClientSecret: creds.SecretKey,
		TokenURL:     f.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if f.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", 0, err
	}
	if tok.Expiry.IsZero() {
		return "", 0, fmt.Errorf("%w: token response has no expires_in", ErrAuth)
	}
	return tok.AccessToken, time.Until(tok.Expiry), nil
}
