// Package wellknown holds the OAuth discovery documents an agent publishes
// about itself.
package wellknown

import (
	"net/url"
	"strings"
)

// ProtectedResourcePrefix is the well-known prefix of RFC 9728 metadata.
const ProtectedResourcePrefix = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadata is the RFC 9728 document describing how to obtain
// tokens for a protected resource.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`
	ResourceDocumentation  string   `json:"resource_documentation,omitempty"`
}

// ProtectedResourceURL returns where the metadata for resource is published:
// the well-known prefix inserted between the host and the resource's path.
func ProtectedResourceURL(resource *url.URL) *url.URL {
	return &url.URL{
		Scheme: resource.Scheme,
		Host:   resource.Host,
		Path:   ProtectedResourcePrefix + strings.TrimSuffix(resource.Path, "/"),
	}
}
