package symbolic

import (
	"strings"

	"github.com/crillab/gophersat/solver"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/findings"
)

// Status is the raw answer of the solver.
type Status string

const (
	StatusSat     Status = "sat"
	StatusUnsat   Status = "unsat"
	StatusUnknown Status = "unknown"
)

const (
	MessageContradiction = "Internal contradictions detected among inferred rules."
	MessageUndetermined  = "Solver could not determine consistency."
)

// Skipped records an assertion that was not added to the model.
type Skipped struct {
	File      string `json:"file,omitempty"`
	Assertion string `json:"assertion"`
	Reason    string `json:"reason"`
}

// Verdict is the result of a consistency check.
type Verdict struct {
	Consistent  bool      `json:"consistent"`
	Status      Status    `json:"status"`
	Violations  []string  `json:"violations"`
	Assertions  int       `json:"assertions"`
	Constraints []string  `json:"constraints,omitempty"`
	Skipped     []Skipped `json:"skipped,omitempty"`
}

// Checker builds a fresh model per call and solves it.
type Checker struct {
	Constraints []Constraint
	logger      hclog.Logger
}

// NewChecker returns a checker applying constraints to every model.
func NewChecker(logger hclog.Logger, constraints ...Constraint) *Checker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Checker{Constraints: constraints, logger: logger}
}

// Check asserts every well formed assertion of fs and reports whether the
// resulting rule set is satisfiable. Malformed assertions are skipped.
func (c *Checker) Check(fs []findings.Finding) Verdict {
	m := NewModel()
	verdict := Verdict{Violations: []string{}}

	for _, f := range fs {
		if f.Assertion == nil || strings.TrimSpace(*f.Assertion) == "" {
			continue
		}
		atom, err := ParseAssertion(*f.Assertion)
		if err != nil {
			c.logger.Warn("skipping assertion", "file", f.File, "assertion", *f.Assertion, "error", err)
			verdict.Skipped = append(verdict.Skipped, Skipped{
				File:      f.File,
				Assertion: *f.Assertion,
				Reason:    err.Error(),
			})
			continue
		}
		m.Assert(atom)
		verdict.Assertions++
	}

	for _, constraint := range c.Constraints {
		constraint.Apply(m)
		verdict.Constraints = append(verdict.Constraints, constraint.Name())
	}

	verdict.Status = solve(m.Clauses())
	switch verdict.Status {
	case StatusSat:
		verdict.Consistent = true
	case StatusUnsat:
		verdict.Violations = append(verdict.Violations, MessageContradiction)
		for _, constraint := range c.Constraints {
			if e, ok := constraint.(Explainer); ok {
				verdict.Violations = append(verdict.Violations, e.Explain(m)...)
			}
		}
	default:
		verdict.Violations = append(verdict.Violations, MessageUndetermined)
	}

	c.logger.Debug("symbolic check completed",
		"status", verdict.Status, "assertions", verdict.Assertions, "skipped", len(verdict.Skipped),
		"roles", m.Constants(SortRole), "actions", m.Constants(SortAction), "resources", m.Constants(SortResource))
	return verdict
}

func solve(clauses [][]int) Status {
	if len(clauses) == 0 {
		return StatusSat
	}
	s := solver.New(solver.ParseSlice(clauses))
	switch s.Solve() {
	case solver.Sat:
		return StatusSat
	case solver.Unsat:
		return StatusUnsat
	default:
		return StatusUnknown
	}
}
