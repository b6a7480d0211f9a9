package main

import (
	"sync"

	"github.com/browserlet/browserlet/internal/logging"
	"github.com/browserlet/browserlet/internal/substitute"
)

// redactingVault wraps a substitute.CredentialResolver so that every
// alias it resolves gets registered with the logging package for the
// lifetime of a run, guaranteeing a credential's plaintext never reaches
// a log line regardless of which step or goroutine resolved it.
// internal/vault has no dependency on internal/logging; this wrapper
// lives at the composition layer instead, the same way repairAdapter and
// microPromptAdapter bridge their own interfaces.
type redactingVault struct {
	inner   substitute.CredentialResolver
	mu      sync.Mutex
	aliases map[string]bool
}

func newRedactingVault(inner substitute.CredentialResolver) *redactingVault {
	return &redactingVault{inner: inner, aliases: map[string]bool{}}
}

func (r *redactingVault) Resolve(alias string) (string, bool, error) {
	value, ok, err := r.inner.Resolve(alias)
	if ok {
		logging.RegisterSecret(alias, value)
		r.mu.Lock()
		r.aliases[alias] = true
		r.mu.Unlock()
	}
	return value, ok, err
}

// forgetAll drops every alias this resolver ever registered, once a run
// or batch that may have resolved it has finished.
func (r *redactingVault) forgetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for alias := range r.aliases {
		logging.ForgetSecret(alias)
	}
}
