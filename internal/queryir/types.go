package queryir

// Query represents a structured query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal
//   - Compare: field <op> literal
//   - Exists: field is present
//   - And: all predicates must be true
type Predicate interface {
	predicateNode()
}

// Select is a filtered, optionally sorted and limited read of one type.
type Select struct {
	Filter Predicate // nil = no filter
	Sort   []SortKey
	Limit  int // 0 = unlimited
}

func (Select) queryNode() {}

// Equals matches objects whose field equals Value. A nil Value matches a
// missing or null field.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// Op is a comparison operator.
type Op string

const (
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Valid reports whether op is a known comparison operator.
func (op Op) Valid() bool {
	switch op {
	case OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare matches objects whose field compares to Value under Op.
// A missing or null field never matches.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// Exists matches objects carrying Field, even with a null value.
type Exists struct {
	Field string
}

func (Exists) predicateNode() {}

// And represents a conjunction of predicates. Empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Desc  bool
}
