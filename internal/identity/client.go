package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scholarship-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const keyCacheTTL = 6 * time.Hour

// Client talks to a Firebase-compatible identity provider: ID tokens are
// RS256 JWTs checked against the published JWKS, account state comes from
// the accounts:lookup REST endpoint.
type Client struct {
	cfg        config.IdentityConfig
	keys       *keySet
	httpClient *http.Client
	parser     *jwt.Parser
	logger     *slog.Logger
}

var _ Provider = (*Client)(nil)

func NewClient(cfg config.IdentityConfig, logger *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Client{
		cfg:        cfg,
		keys:       newKeySet(cfg.JWKSURL, httpClient, keyCacheTTL),
		httpClient: httpClient,
		parser:     jwt.NewParser(opts...),
		logger:     logger,
	}
}

type tokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

func (c *Client) Verify(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	claims := &tokenClaims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid in token header")
		}
		return c.keys.get(ctx, kid)
	})
	if err != nil || !parsed.Valid {
		c.logger.WarnContext(ctx, "token verification failed", "error", err)
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		c.logger.WarnContext(ctx, "token has no subject")
		return nil, ErrInvalidToken
	}

	return &Identity{
		ProviderID:       claims.Subject,
		Email:            strings.ToLower(strings.TrimSpace(claims.Email)),
		ProviderVerified: claims.EmailVerified,
	}, nil
}

type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
		Disabled      bool   `json:"disabled"`
	} `json:"users"`
}

func (c *Client) Lookup(ctx context.Context, providerID string) (*Identity, error) {
	var resp lookupResponse
	body := map[string]any{"localId": []string{providerID}}
	if err := c.post(ctx, "/v1/accounts:lookup", body, true, &resp); err != nil {
		c.logger.WarnContext(ctx, "identity lookup failed", "provider_id", providerID, "error", err)
		return nil, ErrInvalidToken
	}

	for _, u := range resp.Users {
		if u.LocalID != providerID {
			continue
		}
		if u.Disabled {
			c.logger.WarnContext(ctx, "identity is disabled", "provider_id", providerID)
			return nil, ErrInvalidToken
		}
		return &Identity{
			ProviderID:       u.LocalID,
			Email:            strings.ToLower(u.Email),
			ProviderVerified: u.EmailVerified,
		}, nil
	}

	c.logger.WarnContext(ctx, "identity not found at provider", "provider_id", providerID)
	return nil, ErrInvalidToken
}

func (c *Client) SendVerificationEmail(ctx context.Context, token string) error {
	body := map[string]string{"requestType": "VERIFY_EMAIL", "idToken": token}
	if err := c.post(ctx, "/v1/accounts:sendOobCode", body, false, nil); err != nil {
		c.logger.WarnContext(ctx, "send verification email failed", "error", err)
		return ErrInvalidToken
	}
	return nil
}

// RefreshKeys forces a reload of the signing keys.
func (c *Client) RefreshKeys(ctx context.Context) error {
	return c.keys.refresh(ctx)
}

func (c *Client) post(ctx context.Context, path string, payload any, admin bool, out any) error {
	endpoint, err := url.JoinPath(c.cfg.APIBaseURL, path)
	if err != nil {
		return err
	}
	if c.cfg.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.cfg.APIKey)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if admin && c.cfg.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AdminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
