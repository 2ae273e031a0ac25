// Package auth provides the identity primitives used by the A2A transports.
// Callers are resolved to a UserInfo before their request reaches business
// logic; anonymous callers are represented by the Unauthenticated sentinel
// rather than a nil value.
//
// The public surface stays small: an Authenticator validates an incoming
// bearer token string and returns a UserInfo (or an error). Transports are
// responsible for extracting the token from the request and mapping the
// sentinel errors onto HTTP 401 and 403 responses.
//
// # Access Token Authentication
//
// NewFromDiscovery constructs an Authenticator that validates JWT access
// tokens using OpenID Connect discovery to obtain the issuer's JWKS. NewStatic
// does the same against a known JWKS URI. Validation requirements (scopes,
// leeway, allowed algorithms, extra audiences) are set via functional options.
//
// Example:
//
//	authn, err := auth.NewFromDiscovery(ctx, "https://issuer.example", "https://agent.example/a2a",
//	    auth.WithRequiredScopes("a2a:invoke"),
//	)
//	if err != nil { log.Fatal(err) }
//
//	ui, err := authn.CheckAuthentication(ctx, bearerToken)
//	if errors.Is(err, auth.ErrUnauthorized) { /* 401 */ }
//	if errors.Is(err, auth.ErrInsufficientScope) { /* 403 */ }
package auth
