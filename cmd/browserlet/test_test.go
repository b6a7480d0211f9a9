package main

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestDiscoverScriptsFiltersNonBSLFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("name: x\nsteps: []\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("login.bsl")
	write("checkout.bsl")
	write("README.md")
	if err := os.Mkdir(filepath.Join(dir, "fixtures.bsl"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := discoverScripts(dir)
	if err != nil {
		t.Fatalf("discoverScripts: %v", err)
	}
	sort.Strings(got)

	want := []string{filepath.Join(dir, "checkout.bsl"), filepath.Join(dir, "login.bsl")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiscoverScriptsEmptyDirReturnsNil(t *testing.T) {
	dir := t.TempDir()
	got, err := discoverScripts(dir)
	if err != nil {
		t.Fatalf("discoverScripts: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestDiscoverScriptsMissingDirErrors(t *testing.T) {
	if _, err := discoverScripts(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
