package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/example/storefront/internal/config"
	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/models"
)

// GoogleEndpoints are the OAuth2/OIDC URLs used by GoogleService.
type GoogleEndpoints struct {
	AuthURL  string
	TokenURL string
	JWKSURL  string
}

// DefaultGoogleEndpoints are Google's production endpoints.
var DefaultGoogleEndpoints = GoogleEndpoints{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
	JWKSURL:  "https://www.googleapis.com/oauth2/v3/certs",
}

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

var errKeysUnavailable = errors.New("google signing keys unavailable")

// keysRetryAfter is how long a failed JWKS fetch is remembered before the
// next sign-in tries again.
const keysRetryAfter = 30 * time.Second

// Assertion is the verified identity returned by the provider.
type Assertion struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Avatar        string
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	IDToken          string `json:"id_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type providerError struct {
	Status      int
	Code        string
	Description string
}

func (e *providerError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("google: status %d: %s: %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("google: status %d: %s", e.Status, e.Code)
}

// GoogleService exchanges Google authorization codes and verifies ID tokens.
type GoogleService struct {
	cfg        config.GoogleConfig
	endpoints  GoogleEndpoints
	httpClient *http.Client
	keyfunc    jwt.Keyfunc
	remote     *remoteKeys
	now        func() time.Time
	logger     *slog.Logger
}

// NewGoogleService builds a service against Google's production endpoints.
// Signing keys are fetched on first use and refreshed in the background.
func NewGoogleService(cfg config.GoogleConfig, logger *slog.Logger) *GoogleService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &GoogleService{
		cfg:        cfg,
		endpoints:  DefaultGoogleEndpoints,
		httpClient: &http.Client{},
		now:        time.Now,
		logger:     logger,
	}
	s.remote = newRemoteKeys(s.endpoints.JWKSURL, cfg.Timeout, logger)
	return s
}

// WithEndpoints returns a copy talking to other endpoints. Keys are loaded
// from the new JWKS URL.
func (s *GoogleService) WithEndpoints(endpoints GoogleEndpoints) *GoogleService {
	clone := *s
	clone.endpoints = endpoints
	clone.keyfunc = nil
	clone.remote = newRemoteKeys(endpoints.JWKSURL, s.cfg.Timeout, s.logger)
	return &clone
}

// WithKeyfunc returns a copy that resolves signing keys with kf.
func (s *GoogleService) WithKeyfunc(kf jwt.Keyfunc) *GoogleService {
	clone := *s
	clone.keyfunc = kf
	clone.remote = nil
	return &clone
}

// WithClock returns a copy that reads time from now.
func (s *GoogleService) WithClock(now func() time.Time) *GoogleService {
	clone := *s
	clone.now = now
	return &clone
}

// AuthURL builds the consent screen URL carrying state.
func (s *GoogleService) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", s.cfg.ClientID)
	q.Set("redirect_uri", s.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	q.Set("prompt", "select_account")
	return s.endpoints.AuthURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens and verifies the
// returned ID token.
func (s *GoogleService) ExchangeCode(ctx context.Context, code string) (*Assertion, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.Validation("code", "is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)
	form.Set("redirect_uri", s.cfg.RedirectURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.ErrCredentialExchangeFailed.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("google token exchange failed", "error", err)
		return nil, apperrors.ErrCredentialExchangeFailed.Wrap(err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil && resp.StatusCode == http.StatusOK {
		return nil, apperrors.ErrCredentialExchangeFailed.Wrap(fmt.Errorf("decode token response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		perr := &providerError{Status: resp.StatusCode, Code: body.Error, Description: body.ErrorDescription}
		s.logger.Warn("google rejected authorization code", "status", resp.StatusCode, "error", body.Error)
		return nil, apperrors.ErrCredentialExchangeFailed.Wrap(perr)
	}
	if body.IDToken == "" {
		return nil, apperrors.ErrCredentialExchangeFailed.Wrap(errors.New("token response has no id_token"))
	}

	return s.VerifyIDToken(ctx, body.IDToken)
}

// VerifyIDToken checks signature, issuer, audience and expiry of a Google
// ID token and returns the identity it asserts.
func (s *GoogleService) VerifyIDToken(ctx context.Context, raw string) (*Assertion, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.ErrCredentialExchangeFailed.Wrap(err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ErrCredentialInvalid
	}

	kf := s.keyfunc
	if s.remote != nil {
		kf = s.remote.keyfuncFor(ctx)
	}

	claims := &googleClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, kf,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(s.cfg.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Minute),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, errKeysUnavailable) {
			return nil, apperrors.ErrCredentialExchangeFailed.Wrap(err)
		}
		return nil, apperrors.ErrCredentialInvalid.Wrap(err)
	}

	if !validIssuer(claims.Issuer) {
		return nil, apperrors.ErrCredentialInvalid.Wrap(fmt.Errorf("unexpected issuer %q", claims.Issuer))
	}
	email := models.NormalizeEmail(claims.Email)
	if email == "" {
		return nil, apperrors.ErrCredentialInvalid.Wrap(errors.New("id token carries no email"))
	}
	if !claims.EmailVerified {
		return nil, apperrors.ErrCredentialInvalid.Wrap(errors.New("email not verified"))
	}

	return &Assertion{
		Subject:       claims.Subject,
		Email:         email,
		EmailVerified: claims.EmailVerified,
		Name:          strings.TrimSpace(claims.Name),
		Avatar:        claims.Picture,
	}, nil
}

func validIssuer(iss string) bool {
	for _, allowed := range googleIssuers {
		if iss == allowed {
			return true
		}
	}
	return false
}

// remoteKeys loads the JWKS lazily so a provider outage at boot does not
// stop the server. Concurrent sign-ins share one fetch, and a failed fetch is
// not retried for keysRetryAfter.
type remoteKeys struct {
	url     string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	fetches singleflight.Group

	mu       sync.Mutex
	jwks     *keyfunc.JWKS
	failure  error
	failedAt time.Time
}

func newRemoteKeys(url string, timeout time.Duration, logger *slog.Logger) *remoteKeys {
	return &remoteKeys{url: url, timeout: timeout, logger: logger, now: time.Now}
}

func (r *remoteKeys) keyfuncFor(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		jwks, err := r.load(ctx)
		if err != nil {
			return nil, err
		}
		return jwks.Keyfunc(token)
	}
}

func (r *remoteKeys) load(ctx context.Context) (*keyfunc.JWKS, error) {
	r.mu.Lock()
	jwks, failure, failedAt := r.jwks, r.failure, r.failedAt
	r.mu.Unlock()
	if jwks != nil {
		return jwks, nil
	}
	if failure != nil && r.now().Sub(failedAt) < keysRetryAfter {
		return nil, failure
	}

	select {
	case res := <-r.fetches.DoChan("jwks", r.fetch):
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*keyfunc.JWKS), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", errKeysUnavailable, ctx.Err())
	}
}

func (r *remoteKeys) fetch() (interface{}, error) {
	jwks, err := keyfunc.Get(r.url, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			r.logger.Warn("failed to refresh google signing keys", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    r.timeout,
		RefreshUnknownKID: true,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failure = fmt.Errorf("%w: %v", errKeysUnavailable, err)
		r.failedAt = r.now()
		r.logger.Warn("failed to load google signing keys", "error", err)
		return nil, r.failure
	}
	r.jwks, r.failure = jwks, nil
	return jwks, nil
}
