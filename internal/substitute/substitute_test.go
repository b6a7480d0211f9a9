package substitute

import (
	"errors"
	"testing"
)

type fakeVault map[string]string

func (f fakeVault) Resolve(alias string) (string, bool, error) {
	v, ok := f[alias]
	return v, ok, nil
}

func TestSubstituteCredentialThenVariable(t *testing.T) {
	vault := fakeVault{"LINAGORA": "s3cret"}
	vars := map[string]any{"site": map[string]any{"url": "example.com"}}

	got, err := Substitute("step-000", "login to {{var.site.url}} with {{credential:LINAGORA}}", vars, vault)
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	want := "login to example.com with s3cret"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSubstituteVaultUnavailableNamesStepNotAlias(t *testing.T) {
	_, err := Substitute("step-003", "{{credential:SECRET_X}}", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var vaultErr *ErrVaultUnavailable
	if !errors.As(err, &vaultErr) {
		t.Fatalf("err type = %T, want *ErrVaultUnavailable", err)
	}
	if vaultErr.Step != "step-003" {
		t.Errorf("Step = %q, want step-003", vaultErr.Step)
	}
}

func TestSubstituteCredentialValueNeverReScanned(t *testing.T) {
	vault := fakeVault{"TRICKY": "{{var.should_not_expand}}"}
	vars := map[string]any{"should_not_expand": "LEAKED"}

	got, err := Substitute("step-000", "{{credential:TRICKY}}", vars, vault)
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if got != "{{var.should_not_expand}}" {
		t.Errorf("got %q, want literal credential value preserved unexpanded", got)
	}
}

func TestSubstituteUnknownVariableFails(t *testing.T) {
	_, err := Substitute("step-000", "{{var.missing}}", map[string]any{}, nil)
	if err == nil {
		t.Fatal("expected error for missing variable")
	}
}

func TestSubstituteDottedAndIndexedLookup(t *testing.T) {
	vars := map[string]any{
		"rows": []any{
			map[string]any{"name": "Alice"},
			map[string]any{"name": "Bob"},
		},
	}
	got, err := Substitute("step-000", "{{var.rows.1.name}}", vars, nil)
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if got != "Bob" {
		t.Errorf("got %q, want Bob", got)
	}
}

func TestSubstituteNoPlaceholdersPassesThrough(t *testing.T) {
	got, err := Substitute("step-000", "plain text", nil, nil)
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if got != "plain text" {
		t.Errorf("got %q, want unchanged", got)
	}
}
