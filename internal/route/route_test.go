package route_test

import (
	"maps"
	"net/http"
	"testing"

	"github.com/ggoodman/a2a-server-go/internal/route"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    route.Params
		ok      bool
	}{
		{"single param", "/v1/tasks/:taskId", "/v1/tasks/abc123", route.Params{"taskId": "abc123"}, true},
		{"extra segment", "/v1/tasks/:taskId", "/v1/tasks/abc/extra", nil, false},
		{"empty segment", "/v1/tasks/:taskId", "/v1/tasks/", nil, false},
		{"literal suffix", "/v1/tasks/:taskId:cancel", "/v1/tasks/t-1:cancel", route.Params{"taskId": "t-1"}, true},
		{"literal suffix missing", "/v1/tasks/:taskId:cancel", "/v1/tasks/t-1", nil, false},
		{"colon in literal", "/v1/message:send", "/v1/message:send", route.Params{}, true},
		{"two params", "/v1/tasks/:taskId/pushNotificationConfigs/:configId", "/v1/tasks/a/pushNotificationConfigs/b", route.Params{"taskId": "a", "configId": "b"}, true},
		{"trailing slash distinct", "/x", "/x/", nil, false},
		{"trailing slash exact", "/x/", "/x/", route.Params{}, true},
		{"metacharacters escaped", "/v1/a.b", "/v1/aXb", nil, false},
		{"metacharacters literal", "/v1/a.b", "/v1/a.b", route.Params{}, true},
		{"anchored start", "/v1/card", "/prefix/v1/card", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := route.Match(tt.pattern, tt.path)
			if want, got := tt.ok, ok; want != got {
				t.Fatalf("match: want %v got %v", want, got)
			}
			if !maps.Equal(tt.want, got) {
				t.Fatalf("params: want %v got %v", tt.want, got)
			}
		})
	}
}

func TestCompileRejectsBadPatterns(t *testing.T) {
	for _, p := range []string{"v1/tasks", "/v1/:", "/v1/:1abc", "/v1/:id/:id"} {
		if _, err := route.Compile(p); err == nil {
			t.Fatalf("expected %q to be rejected", p)
		}
	}
}

func TestTableFirstMatchWins(t *testing.T) {
	var tbl route.Table[string]
	mustAdd := func(method, pattern, h string) {
		t.Helper()
		if err := tbl.Add(method, pattern, http.StatusOK, false, h); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	mustAdd(http.MethodPost, "/v1/tasks/:taskId:cancel", "cancel")
	mustAdd(http.MethodPost, "/v1/tasks/:taskId", "generic")
	mustAdd(http.MethodGet, "/v1/tasks/:taskId", "get")

	def, params, ok := tbl.Lookup(http.MethodPost, "/v1/tasks/t1:cancel")
	if !ok {
		t.Fatalf("expected a match")
	}
	if want, got := "cancel", def.Handler; want != got {
		t.Fatalf("handler: want %q got %q", want, got)
	}
	if want, got := "t1", params["taskId"]; want != got {
		t.Fatalf("taskId: want %q got %q", want, got)
	}

	def, _, ok = tbl.Lookup(http.MethodGet, "/v1/tasks/t1")
	if !ok || def.Handler != "get" {
		t.Fatalf("expected GET route, got %+v", def)
	}

	if _, _, ok := tbl.Lookup(http.MethodDelete, "/v1/tasks/t1"); ok {
		t.Fatalf("expected no DELETE route")
	}

	if err := tbl.Add(http.MethodGet, "/v1/tasks/:taskId", http.StatusOK, false, "dup"); err == nil {
		t.Fatalf("expected duplicate route to be rejected")
	}
}
