// Package substitute resolves the two placeholder forms a BSL value may
// contain: {{credential:ALIAS}} against the credential vault, and
// {{var.PATH}} against the runtime extracted-variables map.
package substitute

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	credentialPattern = regexp.MustCompile(`\{\{credential:([^}]+)\}\}`)
	varPattern        = regexp.MustCompile(`\{\{var\.([^}]+)\}\}`)
)

// CredentialResolver looks up a credential's plaintext by alias. The
// vault package implements this; substitute never imports vault so a
// step can be substituted against a fake in tests.
type CredentialResolver interface {
	Resolve(alias string) (value string, ok bool, err error)
}

// NoVault is a CredentialResolver that is never available, used when a
// script runs with no vault configured.
type NoVault struct{}

func (NoVault) Resolve(string) (string, bool, error) { return "", false, nil }

// ErrVaultUnavailable is returned, naming only the step — never the
// alias's value — when a step needs a credential and no vault was
// configured or unlocked.
type ErrVaultUnavailable struct {
	Step string
}

func (e *ErrVaultUnavailable) Error() string {
	return fmt.Sprintf("step %s: credential placeholder present but vault is unavailable", e.Step)
}

// Substitute resolves, in order, every {{credential:ALIAS}} placeholder
// and then every {{var.PATH}} placeholder in s. A credential's resolved
// value is inserted verbatim and is never re-scanned for placeholders,
// so a secret that itself contains "{{var.x}}" text is never expanded.
func Substitute(stepID, s string, vars map[string]any, vault CredentialResolver) (string, error) {
	if credentialPattern.MatchString(s) {
		if vault == nil {
			vault = NoVault{}
		}
		if _, ok := vault.(NoVault); ok {
			return "", &ErrVaultUnavailable{Step: stepID}
		}
	}

	withCreds, err := substituteCredentials(stepID, s, vault)
	if err != nil {
		return "", err
	}

	out, err := substituteVars(stepID, withCreds, vars)
	if err != nil {
		return "", err
	}
	return unguardLiterals(out), nil
}

func substituteCredentials(stepID, s string, vault CredentialResolver) (string, error) {
	var outerErr error
	out := credentialPattern.ReplaceAllStringFunc(s, func(m string) string {
		if outerErr != nil {
			return m
		}
		alias := credentialPattern.FindStringSubmatch(m)[1]
		value, ok, err := vault.Resolve(alias)
		if err != nil {
			outerErr = fmt.Errorf("step %s: resolve credential %q: %w", stepID, alias, err)
			return m
		}
		if !ok {
			outerErr = fmt.Errorf("step %s: credential %q not found in vault", stepID, alias)
			return m
		}
		return literalGuard(value)
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

// literalGuard/unguardLiterals prevent a credential value that happens to
// contain "{{" from being mistaken for a placeholder by the variable
// substitution pass that follows. Double braces in a secret are
// vanishingly rare but must never cause double substitution.
const guardOpen = "\x00BL_OPEN\x00"
const guardClose = "\x00BL_CLOSE\x00"

func literalGuard(s string) string {
	s = strings.ReplaceAll(s, "{{", guardOpen)
	return strings.ReplaceAll(s, "}}", guardClose)
}

func unguardLiterals(s string) string {
	s = strings.ReplaceAll(s, guardOpen, "{{")
	return strings.ReplaceAll(s, guardClose, "}}")
}

func substituteVars(stepID, s string, vars map[string]any) (string, error) {
	var outerErr error
	out := varPattern.ReplaceAllStringFunc(s, func(m string) string {
		if outerErr != nil {
			return m
		}
		path := varPattern.FindStringSubmatch(m)[1]
		v, ok := lookup(vars, path)
		if !ok {
			outerErr = fmt.Errorf("step %s: variable %q not set", stepID, path)
			return m
		}
		return fmt.Sprint(v)
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

// lookup resolves a dotted path (e.g. "user.address.city") and, for a
// slice segment, a numeric index (e.g. "rows.0.name") into the extracted
// variables map.
func lookup(vars map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = vars
	for _, seg := range segments {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
