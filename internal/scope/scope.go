// Package scope compiles and matches the (method, url_pattern, constraint)
// triples that define what a capability token may do. Matching is
// deny-by-default: a request is authorized only if at least one compiled
// scope accepts both its method and its URL.
package scope

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/operandhq/lpr/internal/core"
)

// Kind selects the pattern matcher. The kind is derived from the pattern
// syntax once at issuance time, so new kinds can be added here without
// touching the verifier's control flow.
type Kind string

const (
	// KindExact matches the request path verbatim.
	KindExact Kind = "exact"

	// KindPrefix matches any path under the pattern's base. Selected for
	// patterns ending in "/*" whose base carries no other metacharacter.
	KindPrefix Kind = "prefix"

	// KindGlob matches with path.Match semantics; "*" does not cross
	// path separators.
	KindGlob Kind = "glob"
)

// Compiled is a scope with its matcher kind resolved and its constraint
// expression compiled. Compiled values are immutable after Compile.
type Compiled struct {
	Scope core.Scope
	Kind  Kind

	host    string // required request host, empty for any
	pattern string // path part of the pattern
	base    string // prefix base, without the trailing "/*"
	program *vm.Program
}

// Request is the concrete proxied request being checked.
type Request struct {
	Method string
	URL    string
	Origin string
}

// DetectKind derives the matcher kind from the pattern syntax.
func DetectKind(pattern string) Kind {
	if base, found := strings.CutSuffix(pattern, "/*"); found {
		if !strings.ContainsAny(base, "*?[") {
			return KindPrefix
		}
	}
	if strings.ContainsAny(pattern, "*?[") {
		return KindGlob
	}
	return KindExact
}

// Compile validates a scope and resolves its matcher. It is called once per
// scope at issuance; verification only ever uses the compiled form.
func Compile(s core.Scope) (*Compiled, error) {
	method := strings.ToUpper(strings.TrimSpace(s.Method))
	if method == "" {
		return nil, fmt.Errorf("scope method must not be empty")
	}
	s.Method = method

	if s.URLPattern == "" {
		return nil, fmt.Errorf("scope url_pattern must not be empty")
	}

	// absolute patterns pin the host; path-only patterns accept any host
	patternHost, patternPath, err := splitPattern(s.URLPattern)
	if err != nil {
		return nil, err
	}

	c := &Compiled{
		Scope:   s,
		Kind:    DetectKind(patternPath),
		host:    patternHost,
		pattern: patternPath,
	}
	if c.Kind == KindPrefix {
		c.base = strings.TrimSuffix(patternPath, "/*")
	}
	if c.Kind == KindGlob {
		// reject patterns path.Match itself would refuse
		if _, err := path.Match(patternPath, "/"); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", s.URLPattern, err)
		}
	}

	if s.Constraint != "" {
		program, err := expr.Compile(s.Constraint, expr.Env(constraintEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compiling constraint %q: %w", s.Constraint, err)
		}
		c.program = program
	}

	return c, nil
}

// CompileAll compiles every scope, failing on the first invalid one.
func CompileAll(scopes []core.Scope) ([]*Compiled, error) {
	out := make([]*Compiled, 0, len(scopes))
	for i, s := range scopes {
		c, err := Compile(s)
		if err != nil {
			return nil, fmt.Errorf("scope %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// constraintEnv is the expression environment a constraint sees.
type constraintEnv struct {
	Method string            `expr:"method"`
	Path   string            `expr:"path"`
	Origin string            `expr:"origin"`
	Host   string            `expr:"host"`
	Query  map[string]string `expr:"query"`
}

// Match reports whether the compiled scope accepts the request.
func (c *Compiled) Match(req Request) bool {
	if c.Scope.Method != "*" && c.Scope.Method != strings.ToUpper(req.Method) {
		return false
	}

	reqPath, host, query := splitURL(req.URL)
	if c.host != "" && c.host != host {
		return false
	}
	if !c.matchPath(reqPath) {
		return false
	}

	if c.program != nil {
		out, err := expr.Run(c.program, constraintEnv{
			Method: strings.ToUpper(req.Method),
			Path:   reqPath,
			Origin: req.Origin,
			Host:   host,
			Query:  query,
		})
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}
	return true
}

func (c *Compiled) matchPath(reqPath string) bool {
	switch c.Kind {
	case KindPrefix:
		return reqPath == c.base || strings.HasPrefix(reqPath, c.base+"/")
	case KindGlob:
		ok, err := path.Match(c.pattern, reqPath)
		return err == nil && ok
	default:
		return reqPath == c.pattern
	}
}

// splitPattern separates an URL pattern into its host requirement and path
// pattern. "https://api.example.com/admin/*" pins the host; "/admin/*" does
// not.
func splitPattern(raw string) (host, pathPattern string, err error) {
	if !strings.Contains(raw, "://") {
		if !strings.HasPrefix(raw, "/") {
			return "", "", fmt.Errorf("url_pattern %q must be absolute or start with /", raw)
		}
		return "", raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid url_pattern %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("url_pattern %q has a scheme but no host", raw)
	}
	pathPattern = u.Path
	if pathPattern == "" {
		pathPattern = "/"
	}
	return u.Host, pathPattern, nil
}

// splitURL extracts the path, host and first-value query map from a request
// URL that may be absolute or path-only.
func splitURL(raw string) (reqPath, host string, query map[string]string) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, "", nil
	}
	reqPath = u.Path
	if reqPath == "" {
		reqPath = "/"
	}
	query = make(map[string]string)
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	return reqPath, u.Host, query
}

// MatchAny returns the first scope accepting the request, honoring scope
// order, or nil when none matches.
func MatchAny(scopes []*Compiled, req Request) *Compiled {
	for _, c := range scopes {
		if c.Match(req) {
			return c
		}
	}
	return nil
}
