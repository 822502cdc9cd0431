// internal/types/rules.go
package types

/*
 * Rule vocabulary.
 *
 * Scalar type names, rule structures and conjunctions used by the catalog,
 * the AST (internal/rules) and the persisted JSON form (internal/canon).
 * String-valued so the persisted form is the identity encoding.
 *
 * Key types:
 *   - Type: scalar type name (number, text, date, boolean)
 *   - Structure: shape of a rule definition (condition, case, expression)
 *   - Conjunction: boolean combinator of a condition group (AND, OR)
 *
 * Dependencies: None
 */

// Type names a scalar type declared by the catalog.
// Catalogs may declare more types than the four built-in names.
type Type string

const (
	TypeNumber  Type = "number"
	TypeText    Type = "text"
	TypeDate    Type = "date"
	TypeBoolean Type = "boolean"
)

// Structure selects the shape of a rule definition.
type Structure string

const (
	StructureCondition  Structure = "condition"
	StructureCase       Structure = "case"
	StructureExpression Structure = "expression"
)

// Valid reports whether s is one of the known structures.
func (s Structure) Valid() bool {
	switch s {
	case StructureCondition, StructureCase, StructureExpression:
		return true
	default:
		return false
	}
}

// Conjunction combines the children of a condition group.
type Conjunction string

const (
	ConjunctionAnd Conjunction = "AND"
	ConjunctionOr  Conjunction = "OR"
)

// Valid reports whether c is AND or OR.
func (c Conjunction) Valid() bool {
	return c == ConjunctionAnd || c == ConjunctionOr
}

// Identity returns the result of combining zero children: AND -> true, OR -> false.
func (c Conjunction) Identity() bool {
	return c != ConjunctionOr
}
