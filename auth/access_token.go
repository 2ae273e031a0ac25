package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ggoodman/a2a-server-go/internal/jwtauth"
)

// AccessTokenAuthOption configures optional aspects of the JWT access token
// authenticator (scopes, algorithms, leeway, etc.).
type AccessTokenAuthOption func(*jwtauth.Config)

// WithRequiredScopes requires all of the provided scopes to be present in the
// space-delimited "scope" claim.
func WithRequiredScopes(scopes ...string) AccessTokenAuthOption {
	return func(c *jwtauth.Config) {
		c.RequiredScopes = append([]string(nil), scopes...)
		c.ScopeModeAny = false
	}
}

// WithAnyRequiredScope requires at least one of the provided scopes to be present.
func WithAnyRequiredScope(scopes ...string) AccessTokenAuthOption {
	return func(c *jwtauth.Config) {
		c.RequiredScopes = append([]string(nil), scopes...)
		c.ScopeModeAny = true
	}
}

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
// Defaults to ["RS256"].
func WithAllowedAlgs(algs ...string) AccessTokenAuthOption {
	return func(c *jwtauth.Config) {
		c.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) AccessTokenAuthOption {
	return func(c *jwtauth.Config) { c.Leeway = d }
}

// WithAdditionalAudiences accepts tokens minted for other audiences as well,
// typically a local development URL.
func WithAdditionalAudiences(auds ...string) AccessTokenAuthOption {
	return func(c *jwtauth.Config) {
		c.ExpectedAudiences = append(c.ExpectedAudiences, auds...)
	}
}

// WithPlainJWT accepts tokens without the RFC 9068 "at+jwt" typ header.
func WithPlainJWT() AccessTokenAuthOption {
	return func(c *jwtauth.Config) { c.RequireAccessTokenType = false }
}

// NewFromDiscovery returns an Authenticator that verifies JWT access tokens
// using keys found via OpenID Connect discovery on issuer. audience is the
// agent's public URL as registered with the authorization server.
func NewFromDiscovery(ctx context.Context, issuer string, audience string, opts ...AccessTokenAuthOption) (Authenticator, error) {
	cfg, err := buildConfig(issuer, audience, opts)
	if err != nil {
		return nil, err
	}
	internal, err := jwtauth.NewFromDiscovery(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &adapter{a: internal}, nil
}

// NewStatic returns an Authenticator that verifies JWT access tokens against
// a fixed JWKS URI.
func NewStatic(ctx context.Context, issuer string, audience string, jwksURI string, opts ...AccessTokenAuthOption) (Authenticator, error) {
	cfg, err := buildConfig(issuer, audience, opts)
	if err != nil {
		return nil, err
	}
	internal, err := jwtauth.NewStatic(ctx, cfg, jwksURI)
	if err != nil {
		return nil, err
	}
	return &adapter{a: internal}, nil
}

func buildConfig(issuer, audience string, opts []AccessTokenAuthOption) (*jwtauth.Config, error) {
	if audience == "" {
		return nil, errors.New("audience is required")
	}
	cfg := jwtauth.DefaultConfig()
	cfg.Issuer = issuer
	cfg.ExpectedAudiences = []string{audience}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// adapter wraps the internal authenticator to satisfy the public interface.
type adapter struct {
	a jwtauth.Authenticator
}

func (ad *adapter) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	ui, err := ad.a.CheckAuthentication(ctx, tok)
	if err != nil {
		// Map internal sentinel errors to public errors used by the transport.
		if errors.Is(err, jwtauth.ErrInsufficientScope) {
			return nil, errors.Join(ErrInsufficientScope, err)
		}
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return userInfoAdapter{ui: ui}, nil
}

type userInfoAdapter struct{ ui jwtauth.UserInfo }

func (u userInfoAdapter) UserID() string       { return u.ui.UserID() }
func (u userInfoAdapter) Claims(ref any) error { return u.ui.Claims(ref) }
