package bsl

import "fmt"

// Validate checks the invariants a parser alone cannot enforce:
// unique explicit step IDs, and hints restricted to the closed weight table.
// (Weight-table membership is also enforced at decode time by Hint's
// UnmarshalYAML; Validate re-checks it so callers that construct a Script
// programmatically — e.g. the Repair Engine before a rewrite — get the
// same guarantee.)
func Validate(s Script) []error {
	var errs []error

	seen := make(map[string]int)
	for _, step := range s.Steps {
		if step.ID == "" {
			continue
		}
		if prev, ok := seen[step.ID]; ok {
			errs = append(errs, fmt.Errorf("bsl: duplicate step id %q (steps %d and %d)", step.ID, prev, step.Index))
			continue
		}
		seen[step.ID] = step.Index
	}

	for _, step := range s.Steps {
		if step.Target == nil {
			continue
		}
		for _, h := range step.Target.Hints {
			if _, ok := Weight(h.Type); !ok {
				errs = append(errs, fmt.Errorf("bsl: step %d: hint type %q is outside the published weight table", step.Index, h.Type))
			}
		}
	}

	return errs
}
