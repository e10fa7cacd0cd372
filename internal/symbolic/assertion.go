// Package symbolic checks the permission rules inferred by the model for
// contradictions.
package symbolic

import (
	"errors"
	"fmt"
	"strings"
)

// Predicate is the only relation the checker understands.
const Predicate = "HasPermission"

// ErrMalformedAssertion is returned for strings outside the assertion grammar.
var ErrMalformedAssertion = errors.New("malformed assertion")

// Atom is a ground HasPermission(role, action, resource) fact.
type Atom struct {
	Role     string `json:"role"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

func (a Atom) String() string {
	return fmt.Sprintf("(%s %s %s %s)", Predicate, a.Role, a.Action, a.Resource)
}

var parenStripper = strings.NewReplacer("(", " ", ")", " ")

// ParseAssertion parses "(HasPermission <role> <action> <resource>)". A
// bracketed condition suffix is dropped, and an outer "(assert ...)" is accepted.
func ParseAssertion(s string) (Atom, error) {
	cleaned := s
	if i := strings.IndexByte(cleaned, '['); i >= 0 {
		cleaned = cleaned[:i]
	}
	tokens := strings.Fields(parenStripper.Replace(cleaned))
	if len(tokens) == 5 && tokens[0] == "assert" {
		tokens = tokens[1:]
	}
	if len(tokens) != 4 || tokens[0] != Predicate {
		return Atom{}, fmt.Errorf("%w: %q", ErrMalformedAssertion, s)
	}
	return Atom{Role: tokens[1], Action: tokens[2], Resource: tokens[3]}, nil
}
