// Package bsl implements the Browserlet Scripting Language: the YAML
// dialect that names a recorded workflow as an ordered sequence of steps
// whose targets are resolved semantically rather than by CSS path.
package bsl

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Script is an ordered sequence of Steps with a name. Immutable at load
// time except for the Repair Engine, which may rewrite a single step's
// hints and persist the result (see internal/repair).
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// rawScript mirrors Script for decoding, before Index stamping and
// action validation.
type rawScript struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// stripZeroWidth removes characters recorder tooling sometimes leaves in
// BSL source: zero-width spaces/marks and line/paragraph separators.
func stripZeroWidth(raw []byte) []byte {
	s := string(raw)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x200B && r <= 0x200F:
			continue
		case r >= 0x2028 && r <= 0x202F:
			continue
		case r == 0xFEFF:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return []byte(b.String())
}

// Parse decodes a BSL source file into a Script plus the underlying
// yaml.Node document tree. The node tree is format-preserving (comments,
// key order, anchors) and is what the Repair Engine rewrites in place;
// the Script is the read-only typed view the rest of Browserlet uses.
//
// Unknown top-level and step keys are ignored (the zero value of yaml.v3's
// strict-less Unmarshal); an unknown action name fails parse.
func Parse(raw []byte) (*Script, *yaml.Node, error) {
	clean := stripZeroWidth(raw)

	var doc yaml.Node
	if err := yaml.Unmarshal(clean, &doc); err != nil {
		return nil, nil, fmt.Errorf("bsl: parse yaml: %w", err)
	}

	var rs rawScript
	if err := yaml.Unmarshal(clean, &rs); err != nil {
		return nil, nil, fmt.Errorf("bsl: decode script: %w", err)
	}

	script := &Script{Name: rs.Name, Steps: rs.Steps}
	for i := range script.Steps {
		script.Steps[i].Index = i
		if !validActions[script.Steps[i].Action] {
			return nil, nil, fmt.Errorf("bsl: step %d: unknown action %q", i, script.Steps[i].Action)
		}
	}
	return script, &doc, nil
}
