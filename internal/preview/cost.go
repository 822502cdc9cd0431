// internal/preview/cost.go
package preview

import "github.com/solatis/rulekeeper/internal/types"

/*
 * Cost model for condition ordering.
 *
 * Conditions of a group are evaluated cheapest first so AND/OR can
 * short-circuit early. Ordering is a stable sort: equal costs keep document
 * order. Results do not depend on the order since evaluation has no side
 * effects; only which error surfaces first can differ.
 *
 * Cost formula per condition:
 *   operand costs + operator_cost * type_multiplier
 * where a field operand costs CostLookupPerSegment per path segment (times
 * 8 per wildcard), a function call costs CostCall plus its arguments, a rule
 * reference costs CostRuleRef and literals cost nothing.
 */

const (
	// Operator base costs
	CostNullCheck = 1
	CostEqual     = 5
	CostOrdered   = 7
	CostRange     = 8
	CostString    = 10
	CostLike      = 20

	// Operand costs
	CostLookupPerSegment = 128
	CostCall             = 64
	CostRuleRef          = 4096

	// Type multipliers
	MultiplierBoolean = 1
	MultiplierNumber  = 4
	MultiplierDate    = 4
	MultiplierText    = 48
	MultiplierOther   = 128
)

// conditionCost computes the evaluation cost of one condition.
func conditionCost(op Operator, t types.Type, operands []int) int {
	cost := operatorCost(op) * typeMultiplier(t)
	for _, c := range operands {
		cost += c
	}
	return cost
}

// fieldCost is the lookup cost of a field path: 8^n fan-out for n
// wildcards.
func fieldCost(path []Segment) int {
	cost, fanout := 0, 1
	for _, seg := range path {
		if seg.Wildcard {
			fanout *= 8
			continue
		}
		cost += CostLookupPerSegment
	}
	return cost * fanout
}

func operatorCost(op Operator) int {
	switch op {
	case OpIsNull, OpIsNotNull, OpIsEmpty, OpIsNotEmpty:
		return CostNullCheck
	case OpEqual, OpNotEqual:
		return CostEqual
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return CostOrdered
	case OpBetween, OpNotBetween:
		return CostRange
	case OpStartsWith, OpEndsWith, OpContains:
		return CostString
	case OpLike, OpNotLike:
		return CostLike
	}
	return CostEqual
}

func typeMultiplier(t types.Type) int {
	switch t {
	case types.TypeBoolean:
		return MultiplierBoolean
	case types.TypeNumber:
		return MultiplierNumber
	case types.TypeDate:
		return MultiplierDate
	case types.TypeText:
		return MultiplierText
	}
	return MultiplierOther
}
