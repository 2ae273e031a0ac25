package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is an authorization server for tests. It serves OpenID discovery
// metadata and a JWKS holding one RSA key, and mints access tokens signed
// with that key.
type Issuer struct {
	// URL is the issuer identifier and the base of the discovery document.
	URL string
	// JWKSURL serves the signing key set.
	JWKSURL string

	srv *httptest.Server
	key *rsa.PrivateKey
	kid string
}

// IssuerOption adjusts the discovery document of an Issuer.
type IssuerOption func(meta map[string]any)

// WithoutJWKS advertises discovery metadata with no jwks_uri.
func WithoutJWKS() IssuerOption {
	return func(meta map[string]any) { meta["jwks_uri"] = "" }
}

// NewIssuer starts an Issuer that is shut down when the test ends.
func NewIssuer(t testing.TB, opts ...IssuerOption) *Issuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	iss := &Issuer{key: key, kid: "a2a-test-key"}

	jwks, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &key.PublicKey,
		KeyID:     iss.kid,
		Algorithm: "RS256",
		Use:       "sig",
	}}})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		meta := map[string]any{
			"issuer":                   iss.URL,
			"jwks_uri":                 iss.JWKSURL,
			"authorization_endpoint":   iss.URL + "/authorize",
			"token_endpoint":           iss.URL + "/token",
			"response_types_supported": []string{"code"},
		}
		for _, opt := range opts {
			opt(meta)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(meta)
	})
	mux.HandleFunc("/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwks)
	})

	iss.srv = httptest.NewServer(mux)
	iss.URL = iss.srv.URL
	iss.JWKSURL = iss.srv.URL + "/jwks.json"
	t.Cleanup(iss.srv.Close)
	return iss
}

// Claims returns valid claims for subject calling the agent at audience,
// expiring in an hour. Callers may edit the map before minting.
func (i *Issuer) Claims(subject, audience string, scopes ...string) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": i.URL,
		"sub": subject,
		"aud": audience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if len(scopes) > 0 {
		claims["scope"] = strings.Join(scopes, " ")
	}
	return claims
}

// Mint signs claims as an RFC 9068 access token ("typ": "at+jwt").
func (i *Issuer) Mint(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	return i.MintWithType(t, "at+jwt", claims)
}

// MintWithType signs claims with the given typ header. An empty typ omits
// the header.
func (i *Issuer) MintWithType(t testing.TB, typ string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.kid
	if typ == "" {
		delete(tok.Header, "typ")
	} else {
		tok.Header["typ"] = typ
	}
	s, err := tok.SignedString(i.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}
