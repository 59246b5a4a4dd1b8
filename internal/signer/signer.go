// Package signer encodes capability tokens as HS256 JWTs. Signing keys are
// process-wide configuration loaded once at startup and versioned through the
// JWT "kid" header: rotating the active key invalidates only future issuance,
// existing tokens keep verifying against the version they embed.
package signer

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/operandhq/lpr/internal/core"
)

var (
	// ErrMalformed marks tokens that do not parse as a JWT at all.
	ErrMalformed = errors.New("malformed token")

	// ErrSignatureInvalid marks tokens whose signature does not verify,
	// including tokens referencing an unknown key version.
	ErrSignatureInvalid = errors.New("token signature invalid")
)

// KeySet holds the versioned signing keys. Immutable after construction.
type KeySet struct {
	active string
	keys   map[string][]byte
}

// NewKeySet builds a key set. active must name one of the keys and every key
// must be non-empty.
func NewKeySet(active string, keys map[string][]byte) (*KeySet, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("signer: at least one key is required")
	}
	for version, key := range keys {
		if len(key) == 0 {
			return nil, fmt.Errorf("signer: key %q is empty", version)
		}
	}
	if _, ok := keys[active]; !ok {
		return nil, fmt.Errorf("signer: active key version %q not present", active)
	}
	cp := make(map[string][]byte, len(keys))
	for v, k := range keys {
		cp[v] = append([]byte(nil), k...)
	}
	return &KeySet{active: active, keys: cp}, nil
}

// ActiveVersion returns the key version used for new tokens.
func (ks *KeySet) ActiveVersion() string { return ks.active }

func (ks *KeySet) key(version string) ([]byte, bool) {
	k, ok := ks.keys[version]
	return k, ok
}

// claims is the wire shape of a capability token. The signature covers every
// field; the token record itself stays authoritative for mutable state
// (status, usage).
type claims struct {
	Service               string       `json:"svc"`
	Scopes                []core.Scope `json:"scopes"`
	Origins               []string     `json:"origins"`
	DeviceFingerprintHash string       `json:"dfh"`
	Policy                core.Policy  `json:"policy"`
	jwt.RegisteredClaims
}

// Codec signs and parses capability tokens against a KeySet.
type Codec struct {
	keys *KeySet
}

func NewCodec(keys *KeySet) *Codec {
	return &Codec{keys: keys}
}

// Sign produces the signed wire form of a token using the active key. The
// token's KeyVersion field must already be set by the issuer.
func (c *Codec) Sign(tok *core.Token) (string, error) {
	key, ok := c.keys.key(tok.KeyVersion)
	if !ok {
		return "", fmt.Errorf("signer: unknown key version %q", tok.KeyVersion)
	}

	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Service:               tok.Service,
		Scopes:                tok.Scopes,
		Origins:               tok.Origins,
		DeviceFingerprintHash: tok.DeviceFingerprintHash,
		Policy:                tok.Policy,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tok.JTI,
			Subject:   tok.Subject,
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
	})
	jt.Header["kid"] = tok.KeyVersion

	signed, err := jt.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signer: signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and returns the embedded token fields.
// Expiry is deliberately not validated here: the verifier checks it against
// the clock in its own step so the reason codes stay ordered.
func (c *Codec) Parse(raw string) (*core.Token, error) {
	var cl claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var keyVersion string
	_, err := parser.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid header")
		}
		key, ok := c.keys.key(kid)
		if !ok {
			return nil, fmt.Errorf("unknown key version %q", kid)
		}
		keyVersion = kid
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	tok := &core.Token{
		JTI:                   cl.ID,
		Subject:               cl.Subject,
		Service:               cl.Service,
		Scopes:                cl.Scopes,
		Origins:               cl.Origins,
		DeviceFingerprintHash: cl.DeviceFingerprintHash,
		Policy:                cl.Policy,
		KeyVersion:            keyVersion,
	}
	if cl.IssuedAt != nil {
		tok.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		tok.ExpiresAt = cl.ExpiresAt.Time
	}
	if tok.JTI == "" {
		return nil, fmt.Errorf("%w: empty jti", ErrMalformed)
	}
	return tok, nil
}
