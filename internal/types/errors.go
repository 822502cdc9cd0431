package types

import "errors"

// Sentinel errors for RuleKeeper operations.
var (
	// ErrUnknownField indicates a dotted path does not resolve in the field catalog.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownFunction indicates a dotted path does not resolve in the function catalog.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrUnknownOperator indicates an operator key missing from the catalog.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrUnknownType indicates a type name the catalog does not declare.
	ErrUnknownType = errors.New("unknown type")

	// ErrIncompatibleType indicates an operator/operand combination invalid for the declared type.
	ErrIncompatibleType = errors.New("incompatible type")

	// ErrCannotRemoveLastOperand indicates removal of the sole operand of an expression group.
	ErrCannotRemoveLastOperand = errors.New("cannot remove last operand")

	// ErrCannotRemoveLastClause indicates removal of the sole when clause of a case.
	ErrCannotRemoveLastClause = errors.New("cannot remove last when clause")

	// ErrMalformedDynamicArgs indicates a dynamic-arg count outside [minArgs, maxArgs].
	ErrMalformedDynamicArgs = errors.New("dynamic argument count out of bounds")

	// ErrArgumentMismatch indicates fixed arguments that do not match the function signature.
	ErrArgumentMismatch = errors.New("arguments do not match function signature")

	// ErrIndexOutOfRange indicates a child, clause, operand or argument index outside the list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidJSON indicates malformed rule JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrSchemaValidationFailed indicates the validation service rejected a rule.
	ErrSchemaValidationFailed = errors.New("schema validation failed")

	// ErrInvalidRule indicates a rule that fails local catalog or structural checks.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrUnknownNode indicates a NodeID missing from an editor index.
	ErrUnknownNode = errors.New("unknown node")

	// ErrRuleNotFound indicates a rule uuid or version missing from a store.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrUnsupportedOperator indicates an operator the preview evaluator cannot apply.
	ErrUnsupportedOperator = errors.New("operator not supported by preview")

	// ErrUnsupportedFunction indicates a function the preview evaluator cannot call.
	ErrUnsupportedFunction = errors.New("function not supported by preview")

	// ErrCoercionFailed indicates a record value that cannot be converted to the field's type.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrPathTooDeep indicates a record path with more than MaxPathSegments segments.
	ErrPathTooDeep = errors.New("path exceeds maximum depth")

	// ErrTooManyWildcards indicates a record path with more than MaxPathWildcards wildcards.
	ErrTooManyWildcards = errors.New("path has too many wildcards")

	// ErrDivisionByZero indicates a preview arithmetic division by zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrReferenceCycle indicates rule references that refer back to themselves.
	ErrReferenceCycle = errors.New("rule reference cycle")

	// ErrSQLGenerationFailed indicates the SQL-generation service reported errors.
	ErrSQLGenerationFailed = errors.New("SQL generation failed")

	// ErrServiceUnavailable indicates a remote collaborator failed after retries.
	ErrServiceUnavailable = errors.New("service unavailable")
)
