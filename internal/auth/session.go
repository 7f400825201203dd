package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"scholarship-service/internal/account"
	"scholarship-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookie = "session"

var ErrInvalidSession = errors.New("invalid session")

// SessionClaims is the platform view of a logged-in account, signed with the session secret.
type SessionClaims struct {
	AccountID string       `json:"aid"`
	Email     string       `json:"email"`
	Role      account.Role `json:"role"`
	jwt.RegisteredClaims
}

// Sessions issues and reads the cookies set on login.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewSessions(cfg config.SessionConfig, secure bool) *Sessions {
	ttl := cfg.CookieTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(cfg.Secret), ttl: ttl, secure: secure}
}

func (s *Sessions) Issue(acc *account.Account) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		AccountID: acc.ID.String(),
		Email:     acc.Email,
		Role:      acc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (s *Sessions) Parse(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// FromRequest reads the session cookie, if any.
func (s *Sessions) FromRequest(r *http.Request) (*SessionClaims, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, ErrInvalidSession
	}
	return s.Parse(cookie.Value)
}

// SetCookies stores the provider token and the signed session as HttpOnly cookies.
func (s *Sessions) SetCookies(w http.ResponseWriter, idToken, session string) {
	maxAge := int(s.ttl.Seconds())
	http.SetCookie(w, s.cookie(tokenCookie, idToken, maxAge))
	http.SetCookie(w, s.cookie(sessionCookie, session, maxAge))
}

func (s *Sessions) ClearCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(tokenCookie, "", -1))
	http.SetCookie(w, s.cookie(sessionCookie, "", -1))
}

func (s *Sessions) cookie(name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.secure {
		sameSite = http.SameSiteStrictMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: sameSite,
		MaxAge:   maxAge,
	}
}
