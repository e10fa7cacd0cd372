package symbolic

// Sort is one of the uninterpreted domains of HasPermission.
type Sort string

const (
	SortRole     Sort = "Role"
	SortAction   Sort = "Action"
	SortResource Sort = "Resource"
)

type groundKey struct {
	role, action, resource int
}

// Model is the propositional encoding of the HasPermission facts of one run.
// Every distinct token is its own constant of its sort, and every ground atom
// is a boolean variable numbered from 1.
type Model struct {
	constants map[Sort]map[string]int
	vars      map[groundKey]int
	atoms     []Atom
	clauses   [][]int
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		constants: map[Sort]map[string]int{
			SortRole:     {},
			SortAction:   {},
			SortResource: {},
		},
		vars: make(map[groundKey]int),
	}
}

// Intern returns the constant id of name within sort, creating it on first use.
func (m *Model) Intern(sort Sort, name string) int {
	consts := m.constants[sort]
	if id, ok := consts[name]; ok {
		return id
	}
	id := len(consts)
	consts[name] = id
	return id
}

// Constants returns the number of constants of sort.
func (m *Model) Constants(sort Sort) int {
	return len(m.constants[sort])
}

// Variable returns the boolean variable of atom.
func (m *Model) Variable(a Atom) int {
	key := groundKey{
		role:     m.Intern(SortRole, a.Role),
		action:   m.Intern(SortAction, a.Action),
		resource: m.Intern(SortResource, a.Resource),
	}
	if v, ok := m.vars[key]; ok {
		return v
	}
	m.atoms = append(m.atoms, a)
	v := len(m.atoms)
	m.vars[key] = v
	return v
}

// Assert adds atom as a fact.
func (m *Model) Assert(a Atom) {
	m.AddClause(m.Variable(a))
}

// AddClause adds a disjunction of literals. Negative literals negate a variable.
func (m *Model) AddClause(lits ...int) {
	clause := make([]int, len(lits))
	copy(clause, lits)
	m.clauses = append(m.clauses, clause)
}

// Atoms returns the atoms in the order their variables were created.
func (m *Model) Atoms() []Atom {
	return m.atoms
}

// Clauses returns the CNF of the model.
func (m *Model) Clauses() [][]int {
	return m.clauses
}
