package findings

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/minio/highwayhash"
)

// Severity is the enumerated impact of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity normalizes a model supplied severity. Unknown values map to medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// UnmarshalJSON accepts any string and normalizes it with ParseSeverity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = SeverityMedium
		return nil
	}
	*s = ParseSeverity(*raw)
	return nil
}

// Tier is the risk bucket of a source file.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierNone     Tier = "none"
)

// Tiers lists the tiers from the most to the least risky.
var Tiers = []Tier{TierCritical, TierHigh, TierMedium, TierNone}

// Finding is one issue reported by the model for a single chunk.
type Finding struct {
	Issue        string   `json:"issue"`
	Notes        string   `json:"notes,omitempty"`
	Severity     Severity `json:"severity"`
	RequiredRole *string  `json:"required_role"`
	Assertion    *string  `json:"z3_assertion"`
	Function     string   `json:"function_name,omitempty"`
	Snippet      string   `json:"code_snippet,omitempty"`
	File         string   `json:"file,omitempty"`
	ChunkIndex   int      `json:"chunk_index"`
	Fingerprint  string   `json:"fingerprint,omitempty"`
}

// fingerprintKey is the fixed HighwayHash key; fingerprints must be stable across runs.
var fingerprintKey = []byte("logicscan-finding-fingerprint-k!")

// ComputeFingerprint returns a stable identifier of the finding derived from
// its file, issue text and snippet.
func ComputeFingerprint(file, issue, snippet string) string {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		// key length is fixed at 32 bytes
		panic(err)
	}
	h.Write([]byte(file))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(issue))))
	h.Write([]byte{0})
	h.Write([]byte(snippet))
	return hex.EncodeToString(h.Sum(nil))
}

// FileReport aggregates the results of every chunk of one analyzed file.
type FileReport struct {
	File       string    `json:"file"`
	Tier       Tier      `json:"tier"`
	Score      int       `json:"score"`
	Changed    bool      `json:"changed"`
	Chunks     int       `json:"chunks"`
	Findings   []Finding `json:"analysis"`
	RawOutputs []string  `json:"raw_outputs"`
}

// Assertions returns the findings of all reports that carry a symbolic assertion.
func Assertions(reports []FileReport) []Finding {
	var out []Finding
	for _, r := range reports {
		for _, f := range r.Findings {
			if f.Assertion != nil && strings.TrimSpace(*f.Assertion) != "" {
				out = append(out, f)
			}
		}
	}
	return out
}
