package issuecorrelation

import "sort"

// IssueMetadata describes the minimal metadata required to correlate findings
// of two scans of the same repository.
//   - IssueID: position of the finding in its report, not used for matching.
//   - RuleID: normalized issue title.
//   - Filename, Function: location of the finding inside the repository.
//   - Fingerprint: stable identifier computed when the finding was aggregated.
//   - SnippetHash: whitespace insensitive hash of the reported code snippet.
type IssueMetadata struct {
	IssueID     string
	RuleID      string
	Severity    string
	Filename    string
	Function    string
	Fingerprint string
	SnippetHash string
}

// Match groups a single known issue with the new issues correlated to it.
type Match struct {
	Known IssueMetadata
	New   []IssueMetadata
}

// Correlator computes correlations between the findings of a previous scan
// (known) and the current one (new). A known issue may match several new
// issues and vice versa.
type Correlator struct {
	NewIssues   []IssueMetadata
	KnownIssues []IssueMetadata

	knownToNew map[int][]int
	newToKnown map[int][]int

	processed bool
}

// NewCorrelator constructs a Correlator. Nothing is computed until Process.
func NewCorrelator(newIssues, knownIssues []IssueMetadata) *Correlator {
	return &Correlator{
		NewIssues:   newIssues,
		KnownIssues: knownIssues,
	}
}

// Process correlates issues in four ordered stages. An issue matched in an
// earlier stage is excluded from later ones:
// 1) filename+fingerprint
// 2) filename+ruleid+snippethash
// 3) filename+ruleid+function
// 4) filename+ruleid
// Process is idempotent.
func (c *Correlator) Process() {
	if c.processed {
		return
	}
	c.knownToNew = make(map[int][]int)
	c.newToKnown = make(map[int][]int)

	matchedKnown := make(map[int]bool)
	matchedNew := make(map[int]bool)

	for _, stage := range []int{1, 2, 3, 4} {
		matchedKnownThis := make(map[int]bool)
		matchedNewThis := make(map[int]bool)

		for ki, k := range c.KnownIssues {
			if matchedKnown[ki] {
				continue
			}
			for ni, n := range c.NewIssues {
				if matchedNew[ni] {
					continue
				}
				if matchStage(k, n, stage) {
					c.knownToNew[ki] = append(c.knownToNew[ki], ni)
					c.newToKnown[ni] = append(c.newToKnown[ni], ki)
					matchedKnownThis[ki] = true
					matchedNewThis[ni] = true
				}
			}
		}

		for ki := range matchedKnownThis {
			matchedKnown[ki] = true
		}
		for ni := range matchedNewThis {
			matchedNew[ni] = true
		}
	}

	c.processed = true
}

// matchStage reports whether a and b match under the given stage. Filename
// must always be equal, and stages 2-4 also require a RuleID.
func matchStage(a, b IssueMetadata, stage int) bool {
	if a.Filename != b.Filename {
		return false
	}
	if stage == 1 {
		return a.Fingerprint != "" && a.Fingerprint == b.Fingerprint
	}
	if a.RuleID == "" || a.RuleID != b.RuleID {
		return false
	}

	switch stage {
	case 2:
		return a.SnippetHash != "" && a.SnippetHash == b.SnippetHash
	case 3:
		return a.Function != "" && a.Function == b.Function
	case 4:
		return true
	default:
		return false
	}
}

// UnmatchedNew returns the new issues not correlated to any known issue.
func (c *Correlator) UnmatchedNew() []IssueMetadata {
	c.Process()

	var out []IssueMetadata
	for ni, n := range c.NewIssues {
		if len(c.newToKnown[ni]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// UnmatchedKnown returns the known issues not correlated to any new issue.
func (c *Correlator) UnmatchedKnown() []IssueMetadata {
	c.Process()

	var out []IssueMetadata
	for ki, k := range c.KnownIssues {
		if len(c.knownToNew[ki]) == 0 {
			out = append(out, k)
		}
	}
	return out
}

// Matches returns one Match per known issue with at least one correlated new
// issue, in the order of KnownIssues.
func (c *Correlator) Matches() []Match {
	c.Process()

	known := make([]int, 0, len(c.knownToNew))
	for ki, newIdxs := range c.knownToNew {
		if len(newIdxs) > 0 {
			known = append(known, ki)
		}
	}
	sort.Ints(known)

	out := make([]Match, 0, len(known))
	for _, ki := range known {
		m := Match{Known: c.KnownIssues[ki], New: make([]IssueMetadata, 0, len(c.knownToNew[ki]))}
		for _, ni := range c.knownToNew[ki] {
			m.New = append(m.New, c.NewIssues[ni])
		}
		out = append(out, m)
	}
	return out
}
