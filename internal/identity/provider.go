// Package identity adapts the external identity provider: it builds the
// sign-in redirect and verifies the ID token the provider posts back.
package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/microloan/auth"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("identity token has expired")
	ErrTokenInvalid = errors.New("identity token is invalid")
)

// Provider is the identity provider as seen by the web frontend.
type Provider interface {
	// SignInURL is where the browser goes to sign in. callback receives the
	// token; returnTo is echoed back so the user resumes where they were.
	SignInURL(callback, returnTo string) string
	// SignOutURL ends the provider session, or is empty when there is none.
	SignOutURL(returnTo string) string
	// Verify checks a raw ID token and returns the asserted identity.
	Verify(ctx context.Context, rawToken string) (auth.Identity, error)
}

// Claims are the ID token claims we read.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// JWTConfig configures a JWTProvider.
type JWTConfig struct {
	SignInURL  string
	SignOutURL string
	Issuer     string
	Audience   string
	Secret     string
	Leeway     time.Duration
}

// JWTProvider verifies HMAC-signed ID tokens.
type JWTProvider struct {
	cfg JWTConfig
}

func NewJWTProvider(cfg JWTConfig) *JWTProvider { return &JWTProvider{cfg: cfg} }

func (p *JWTProvider) SignInURL(callback, returnTo string) string {
	q := url.Values{"redirect_uri": {callback}}
	if returnTo != "" {
		q.Set("state", returnTo)
	}
	return appendQuery(p.cfg.SignInURL, q)
}

func (p *JWTProvider) SignOutURL(returnTo string) string {
	if p.cfg.SignOutURL == "" {
		return ""
	}
	return appendQuery(p.cfg.SignOutURL, url.Values{"post_logout_redirect_uri": {returnTo}})
}

func (p *JWTProvider) Verify(_ context.Context, raw string) (auth.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(p.cfg.Leeway),
	}
	if p.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.cfg.Issuer))
	}
	if p.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(p.cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.Identity{}, ErrTokenExpired
		}
		return auth.Identity{}, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Email) == "" {
		return auth.Identity{}, ErrTokenInvalid
	}
	return auth.Identity{
		Email:       strings.ToLower(strings.TrimSpace(claims.Email)),
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
		Token:       raw,
	}, nil
}

func appendQuery(base string, q url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// SafeReturnPath accepts only same-origin absolute paths and falls back to "/".
func SafeReturnPath(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return u.RequestURI()
}
