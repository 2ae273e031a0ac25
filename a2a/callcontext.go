package a2a

import (
	"context"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/ggoodman/a2a-server-go/auth"
)

// ExtensionsHeader carries extension URIs in both directions: requested by
// the client, activated by the server.
const ExtensionsHeader = "X-A2A-Extensions"

// CallContext is the per-request bundle of negotiated extensions and caller
// identity. It belongs to exactly one request.
type CallContext struct {
	user      auth.UserInfo
	requested []string

	mu        sync.Mutex
	activated []string
}

// NewCallContext builds a CallContext from the raw extensions header value.
// A nil user is recorded as auth.Unauthenticated.
func NewCallContext(extensionsHeader string, user auth.UserInfo) *CallContext {
	if user == nil {
		user = auth.Unauthenticated
	}
	return &CallContext{
		user:      user,
		requested: ParseExtensions(extensionsHeader),
	}
}

// ParseExtensions splits a comma and/or whitespace separated list of URIs,
// dropping empties and duplicates while keeping first-seen order.
func ParseExtensions(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// User returns the caller identity.
func (c *CallContext) User() auth.UserInfo { return c.user }

// RequestedExtensions returns the extensions the client asked for, in the
// order it listed them.
func (c *CallContext) RequestedExtensions() []string {
	return slices.Clone(c.requested)
}

// IsExtensionRequested reports whether the client listed uri.
func (c *CallContext) IsExtensionRequested(uri string) bool {
	return slices.Contains(c.requested, uri)
}

// AddActivatedExtension records that the handler honored uri. Only requested
// extensions can be activated; the return value reports whether uri is
// active after the call. Repeated activations are no-ops.
func (c *CallContext) AddActivatedExtension(uri string) bool {
	if !c.IsExtensionRequested(uri) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !slices.Contains(c.activated, uri) {
		c.activated = append(c.activated, uri)
	}
	return true
}

// ActivatedExtensions returns activated extensions in activation order.
func (c *CallContext) ActivatedExtensions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.activated)
}

// ActivatedExtensionsHeader renders the response header value. The boolean
// is false when nothing was activated and no header should be sent.
func (c *CallContext) ActivatedExtensionsHeader() (string, bool) {
	act := c.ActivatedExtensions()
	if len(act) == 0 {
		return "", false
	}
	return strings.Join(act, ", "), true
}

type callContextKey struct{}

// WithCallContext attaches cc to ctx for request handlers.
func WithCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFrom returns the CallContext attached to ctx, if any.
func CallContextFrom(ctx context.Context) (*CallContext, bool) {
	cc, ok := ctx.Value(callContextKey{}).(*CallContext)
	return cc, ok
}
