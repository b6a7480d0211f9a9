package repair

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/browserlet/browserlet/internal/bsl"
)

// auditEntry is one record in a script's .browserlet-repair-history.json.
type auditEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	ScriptPath    string    `json:"script_path"`
	StepIndex     int       `json:"step_index"`
	OriginalHints []bsl.Hint `json:"original_hints"`
	AppliedHints  []bsl.Hint `json:"applied_hints"`
	Confidence    float64   `json:"confidence"`
	Reasoning     string    `json:"reasoning"`
	URL           string    `json:"url"`
}

// appendAudit reads the existing JSON array at path (treating a missing
// file as empty), appends entry, and writes the array back.
//
// Concurrent runners racing on the same history file are a documented
// limitation: this is read-modify-write, and the last writer wins. The
// repair history is an audit trail, not a source of truth the runner
// depends on, so that tradeoff is acceptable.
func appendAudit(path string, entry auditEntry) error {
	var entries []auditEntry

	raw, err := os.ReadFile(path)
	if err == nil {
		if jsonErr := json.Unmarshal(raw, &entries); jsonErr != nil {
			// A corrupt history file should not block a successful repair;
			// start a fresh history rather than failing the run.
			entries = nil
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("repair: read history %s: %w", path, err)
	}

	entries = append(entries, entry)

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("repair: marshal history: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("repair: write history %s: %w", path, err)
	}
	return nil
}
