package authtest

import (
	"context"
	"encoding/json"

	"github.com/ggoodman/a2a-server-go/auth"
)

// NoAuth is a test authenticator that accepts any non-empty token.
// Used for testing and development environments where authentication is not required.
type NoAuth struct {
	UserID string
	Claims map[string]any
}

// NewNoAuth creates a new NoAuth authenticator with the specified user ID.
// If userID is empty, it defaults to "test-user".
func NewNoAuth(userID string) *NoAuth {
	if userID == "" {
		userID = "test-user"
	}
	return &NoAuth{UserID: userID}
}

// CheckAuthentication accepts every non-empty token.
func (n *NoAuth) CheckAuthentication(ctx context.Context, tok string) (auth.UserInfo, error) {
	if tok == "" {
		return nil, auth.ErrUnauthorized
	}
	return &noAuthUserInfo{userID: n.UserID, claims: n.Claims}, nil
}

type noAuthUserInfo struct {
	userID string
	claims map[string]any
}

func (n *noAuthUserInfo) UserID() string {
	return n.userID
}

func (n *noAuthUserInfo) Claims(ref any) error {
	if n.claims == nil {
		return nil
	}
	b, err := json.Marshal(n.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}
