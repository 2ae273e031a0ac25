package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ggoodman/a2a-server-go/auth"
)

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
)

// UserResolver identifies the caller of a request. It returns
// auth.Unauthenticated for anonymous callers it accepts, an error wrapping
// auth.ErrUnauthorized or auth.ErrInsufficientScope for callers it rejects.
type UserResolver interface {
	ResolveUser(ctx context.Context, req Request) (auth.UserInfo, error)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(ctx context.Context, req Request) (auth.UserInfo, error)

func (f UserResolverFunc) ResolveUser(ctx context.Context, req Request) (auth.UserInfo, error) {
	return f(ctx, req)
}

// Anonymous accepts every caller as auth.Unauthenticated.
func Anonymous() UserResolver {
	return UserResolverFunc(func(context.Context, Request) (auth.UserInfo, error) {
		return auth.Unauthenticated, nil
	})
}

// BearerOption configures Bearer.
type BearerOption func(*bearerResolver)

// AllowAnonymous lets requests without an Authorization header through as
// auth.Unauthenticated. Malformed or invalid credentials are still rejected.
func AllowAnonymous() BearerOption {
	return func(b *bearerResolver) { b.allowAnonymous = true }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges.
func WithRealm(realm string) BearerOption {
	return func(b *bearerResolver) { b.realm = strings.TrimSpace(realm) }
}

// WithResourceMetadata advertises the RFC 9728 metadata URL in
// WWW-Authenticate challenges.
func WithResourceMetadata(metadataURL string) BearerOption {
	return func(b *bearerResolver) { b.resourceMetadata = metadataURL }
}

// Bearer resolves callers from an RFC 6750 bearer token checked by a.
func Bearer(a auth.Authenticator, opts ...BearerOption) UserResolver {
	b := &bearerResolver{auth: a}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type bearerResolver struct {
	auth             auth.Authenticator
	realm            string
	resourceMetadata string
	allowAnonymous   bool
}

func (b *bearerResolver) ResolveUser(ctx context.Context, req Request) (auth.UserInfo, error) {
	h := req.Header(authorizationHeader)
	if h == "" {
		if b.allowAnonymous {
			return auth.Unauthenticated, nil
		}
		// No error code when no credentials were offered (RFC 6750 §3.1).
		return nil, &AuthError{Status: http.StatusUnauthorized, Challenge: b.challenge(nil), err: auth.ErrUnauthorized}
	}

	const bearerPrefix = "Bearer "
	tok := ""
	if len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		tok = strings.TrimSpace(h[len(bearerPrefix):])
	}
	if tok == "" {
		return nil, &AuthError{
			Status:    http.StatusUnauthorized,
			Challenge: b.challenge(map[string]string{"error": "invalid_request", "error_description": "malformed bearer authorization header"}),
			err:       fmt.Errorf("%w: malformed bearer authorization header", auth.ErrUnauthorized),
		}
	}

	user, err := b.auth.CheckAuthentication(ctx, tok)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, auth.ErrInsufficientScope):
		return nil, &AuthError{
			Status:    http.StatusForbidden,
			Challenge: b.challenge(map[string]string{"error": "insufficient_scope", "error_description": err.Error()}),
			err:       err,
		}
	case errors.Is(err, auth.ErrUnauthorized):
		return nil, &AuthError{
			Status:    http.StatusUnauthorized,
			Challenge: b.challenge(map[string]string{"error": "invalid_token", "error_description": err.Error()}),
			err:       err,
		}
	}
	return nil, err
}

// AuthError is a rejected caller. Status is 401 or 403; Challenge, when set,
// is sent as WWW-Authenticate.
type AuthError struct {
	Status    int
	Challenge string
	err       error
}

func (e *AuthError) Error() string { return e.err.Error() }
func (e *AuthError) Unwrap() error { return e.err }

// authFailure maps a resolver error to a status and optional challenge.
// Resolvers that return bare sentinels still get the right status.
func authFailure(err error) (status int, challenge string) {
	var ae *AuthError
	switch {
	case errors.As(err, &ae):
		return ae.Status, ae.Challenge
	case errors.Is(err, auth.ErrInsufficientScope):
		return http.StatusForbidden, ""
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, ""
	}
	return http.StatusInternalServerError, ""
}

func (b *bearerResolver) challenge(params map[string]string) string {
	return buildBearerChallenge(b.realm, b.resourceMetadata, params)
}

// buildBearerChallenge renders a Bearer challenge. Parameters are emitted in
// a fixed order: realm, resource_metadata, error, error_description.
func buildBearerChallenge(realm, resourceMetadata string, params map[string]string) string {
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	var pieces []string
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc.Replace(realm)))
	}
	if resourceMetadata != "" {
		pieces = append(pieces, fmt.Sprintf(`resource_metadata="%s"`, esc.Replace(resourceMetadata)))
	}
	for _, k := range []string{"error", "error_description"} {
		if v, ok := params[k]; ok {
			pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc.Replace(v)))
		}
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
