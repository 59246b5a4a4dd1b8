package scope

import (
	"testing"

	"github.com/operandhq/lpr/internal/core"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		pattern string
		want    Kind
	}{
		{"/admin/products", KindExact},
		{"/admin/products/*", KindPrefix},
		{"/admin/*/variants", KindGlob},
		{"/admin/products/[0-9]*", KindGlob},
		{"/admin/*/variants/*", KindGlob},
		{"/", KindExact},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := DetectKind(tt.pattern); got != tt.want {
				t.Errorf("DetectKind(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestCompileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		scope core.Scope
	}{
		{"empty method", core.Scope{Method: "", URLPattern: "/x"}},
		{"empty pattern", core.Scope{Method: "GET", URLPattern: ""}},
		{"relative pattern", core.Scope{Method: "GET", URLPattern: "admin/x"}},
		{"scheme without host", core.Scope{Method: "GET", URLPattern: "https:///x"}},
		{"bad glob", core.Scope{Method: "GET", URLPattern: "/admin/[x"}},
		{"bad constraint", core.Scope{Method: "GET", URLPattern: "/x", Constraint: "1 +"}},
		{"non-bool constraint", core.Scope{Method: "GET", URLPattern: "/x", Constraint: `"yes"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.scope); err == nil {
				t.Errorf("Compile(%+v) expected error, got nil", tt.scope)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name  string
		scope core.Scope
		req   Request
		want  bool
	}{
		{
			name:  "exact path match",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/products"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/products"},
			want:  true,
		},
		{
			name:  "exact path differs",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/products"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/orders"},
			want:  false,
		},
		{
			name:  "method mismatch",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/products"},
			req:   Request{Method: "DELETE", URL: "https://api.example.com/admin/products"},
			want:  false,
		},
		{
			name:  "wildcard method",
			scope: core.Scope{Method: "*", URLPattern: "/admin/products"},
			req:   Request{Method: "PUT", URL: "https://api.example.com/admin/products"},
			want:  true,
		},
		{
			name:  "method is case insensitive",
			scope: core.Scope{Method: "get", URLPattern: "/admin/products"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/products"},
			want:  true,
		},
		{
			name:  "prefix matches nested path",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/products/*"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/products/42/variants"},
			want:  true,
		},
		{
			name:  "prefix matches the base itself",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/products/*"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/products"},
			want:  true,
		},
		{
			name:  "prefix does not match sibling",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/products/*"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/productsarchive"},
			want:  false,
		},
		{
			name:  "glob star stays within one segment",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/*/variants"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/42/variants"},
			want:  true,
		},
		{
			name:  "glob star does not cross separators",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/*/variants"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/42/extra/variants"},
			want:  false,
		},
		{
			name:  "absolute pattern pins the host",
			scope: core.Scope{Method: "GET", URLPattern: "https://api.example.com/admin/*"},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/products"},
			want:  true,
		},
		{
			name:  "absolute pattern rejects another host",
			scope: core.Scope{Method: "GET", URLPattern: "https://api.example.com/admin/*"},
			req:   Request{Method: "GET", URL: "https://evil.example.net/admin/products"},
			want:  false,
		},
		{
			name:  "constraint passes",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/*", Constraint: `query.limit == "10"`},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/products?limit=10"},
			want:  true,
		},
		{
			name:  "constraint fails",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/*", Constraint: `query.limit == "10"`},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/products?limit=500"},
			want:  false,
		},
		{
			name:  "constraint sees the origin",
			scope: core.Scope{Method: "GET", URLPattern: "/admin/*", Constraint: `origin == "https://agent.example.com"`},
			req:   Request{Method: "GET", URL: "https://api.example.com/admin/products", Origin: "https://agent.example.com"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(tt.scope)
			if err != nil {
				t.Fatalf("Compile(%+v) failed: %v", tt.scope, err)
			}
			if got := c.Match(tt.req); got != tt.want {
				t.Errorf("Match(%+v) = %v, want %v", tt.req, got, tt.want)
			}
		})
	}
}

func TestMatchAnyHonorsOrder(t *testing.T) {
	compiled, err := CompileAll([]core.Scope{
		{Method: "GET", URLPattern: "/a/*"},
		{Method: "*", URLPattern: "/a/b"},
	})
	if err != nil {
		t.Fatalf("CompileAll failed: %v", err)
	}

	got := MatchAny(compiled, Request{Method: "GET", URL: "https://h/a/b"})
	if got == nil {
		t.Fatal("MatchAny returned nil, want a match")
	}
	if got.Scope.URLPattern != "/a/*" {
		t.Errorf("MatchAny picked %q, want the first matching scope /a/*", got.Scope.URLPattern)
	}

	if m := MatchAny(compiled, Request{Method: "GET", URL: "https://h/c"}); m != nil {
		t.Errorf("MatchAny = %+v, want nil for unmatched request", m.Scope)
	}
}
