// Package canon converts rule trees to and from their persisted JSON form.
//
// The persisted form is canonical: top-level keys are exactly structure,
// returnType, ruleType, uuId, version, metadata and definition, and the
// definition carries no presentation state. Domain types hold no ids or
// expanded/editing flags, so Marshal is the strip operation; the only
// in-memory state it drops is the name pin flag, which Hydrate recomputes.
//
// For every valid rule x:
//
//	Marshal(Strip(Hydrate(Marshal(x)))) == Marshal(x)
package canon

import (
	"github.com/solatis/rulekeeper/internal/rules"
)

// Strip returns r without in-memory-only state. Marshal(Strip(r)) equals
// Marshal(r).
func Strip(r rules.Rule) rules.Rule {
	switch d := r.Definition.(type) {
	case rules.ConditionGroup:
		r.Definition = unpinGroup(d)
	case rules.Case:
		clauses := make([]rules.WhenClause, len(d.WhenClauses))
		for i, w := range d.WhenClauses {
			w.NamePinned = false
			w.When = unpinGroup(w.When)
			clauses[i] = w
		}
		d.WhenClauses = clauses
		r.Definition = d
	}
	return r
}

func unpinGroup(g rules.ConditionGroup) rules.ConditionGroup {
	g.NamePinned = false
	children := make([]rules.Node, len(g.Children))
	for i, child := range g.Children {
		switch n := child.(type) {
		case rules.Condition:
			n.NamePinned = false
			children[i] = n
		case rules.ConditionGroup:
			children[i] = unpinGroup(n)
		}
	}
	g.Children = children
	return g
}

// Hydrate parses persisted rule JSON and recomputes name pins: a node whose
// name differs from the auto name for its position is treated as user-named.
// Node ids and presentation state belong to the editing layer
// (editor.Load).
func Hydrate(data []byte) (rules.Rule, error) {
	r, err := Parse(data)
	if err != nil {
		return rules.Rule{}, err
	}
	switch d := r.Definition.(type) {
	case rules.ConditionGroup:
		r.Definition = rules.PinNames(d)
	case rules.Case:
		r.Definition = rules.PinResultNames(d)
	}
	return r, nil
}
