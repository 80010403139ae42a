package rest

import (
	"context"
	"crypto/subtle"
	"sort"
	"strings"

	"github.com/fairgrounds/deltashare/server/config"
)

// Scope is the share-level access granted to a bearer token. A nil share
// set grants access to the full catalog.
type Scope struct {
	shares map[string]bool
}

// Allows reports whether the scope covers the named share
func (s *Scope) Allows(share string) bool {
	if s == nil || s.shares == nil {
		return true
	}
	return s.shares[share]
}

// Unrestricted reports whether the scope covers every share
func (s *Scope) Unrestricted() bool {
	return s == nil || s.shares == nil
}

// fingerprint feeds the pagination token fingerprint so a token minted
// under one scope cannot resume a listing under another
func (s *Scope) fingerprint() string {
	if s.Unrestricted() {
		return "*"
	}
	names := make([]string, 0, len(s.shares))
	for name := range s.shares {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// TokenProvider is the secret-provider capability: resolve a presented
// bearer value to its scope, or report it unknown. Implementations must
// not leak timing information about configured tokens.
type TokenProvider interface {
	Lookup(ctx context.Context, token string) (*Scope, bool)
}

// StaticTokenProvider serves the token list from server configuration
type StaticTokenProvider struct {
	tokens []staticToken
}

type staticToken struct {
	value []byte
	scope *Scope
}

// NewStaticTokenProvider builds a provider from configured tokens
func NewStaticTokenProvider(configs []config.TokenConfig) *StaticTokenProvider {
	provider := &StaticTokenProvider{}
	for _, tc := range configs {
		st := staticToken{value: []byte(tc.Token)}
		if len(tc.Shares) > 0 {
			shares := make(map[string]bool, len(tc.Shares))
			for _, name := range tc.Shares {
				shares[name] = true
			}
			st.scope = &Scope{shares: shares}
		}
		provider.tokens = append(provider.tokens, st)
	}
	return provider
}

// Lookup compares the presented token against every configured token in
// constant time. All candidates are checked even after a match.
func (p *StaticTokenProvider) Lookup(ctx context.Context, token string) (*Scope, bool) {
	presented := []byte(token)

	var matched *staticToken
	for i := range p.tokens {
		candidate := &p.tokens[i]
		if len(candidate.value) != len(presented) {
			continue
		}
		if subtle.ConstantTimeCompare(candidate.value, presented) == 1 && matched == nil {
			matched = candidate
		}
	}

	if matched == nil {
		return nil, false
	}
	return matched.scope, true
}
