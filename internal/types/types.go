// Package types provides vocabulary shared across RuleKeeper components.
//
// Zero-dependency design: everything except ids.go uses the standard library
// only, so the catalog, AST and canonicalization packages stay light. ID
// generation in ids.go imports uuid and is injected where identities are
// minted, never reached for from inside a tree.
//
// Separation from the AST: rule nodes live in internal/rules. This package
// holds the scalar type names, sentinel errors and diagnostics that the
// catalog, the AST, the canonical codec and the service clients all speak.
package types

// Resource limits enforced while loading and walking rule trees.
const (
	// MaxNestingDepth bounds recursion when decoding persisted trees.
	// 64 levels is far beyond anything an editor produces and keeps hostile
	// payloads from exhausting the stack.
	MaxNestingDepth = 64

	// MaxPathSegments bounds dotted catalog paths and record paths.
	MaxPathSegments = 16

	// MaxPathWildcards bounds "*" segments in a record path; each one fans
	// out over every element of an array or object.
	MaxPathWildcards = 2

	// MaxReferenceDepth bounds chains of rule references during preview.
	MaxReferenceDepth = 8

	// MaxGroupOperands bounds ExpressionGroup length.
	MaxGroupOperands = 256
)
