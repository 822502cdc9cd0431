// internal/editor/index.go
package editor

import (
	"slices"
	"strconv"
	"strings"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Node index.
 *
 * Domain trees carry no identity. The index maps ephemeral NodeIDs to the
 * position of a condition or condition group, and holds the view state
 * (expanded, editing) keyed by those ids. Ids are minted by the injected
 * IDGenerator, never restored from persisted JSON.
 *
 * Positions shift when siblings are removed or moved; the index re-keys
 * the affected subtrees so every surviving node keeps its id.
 */

// Kind distinguishes indexed node types.
type Kind int

const (
	KindCondition Kind = iota + 1
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindCondition:
		return "condition"
	case KindGroup:
		return "group"
	}
	return "unknown"
}

// Locator is the position of a node: the when clause it belongs to (zero
// for condition rules) and its path from that clause's root group.
type Locator struct {
	Clause int
	Path   rules.Path
}

func (l Locator) key() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(l.Clause))
	sb.WriteByte('/')
	for i, k := range l.Path {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(k))
	}
	return sb.String()
}

// under reports whether l lies strictly below group p of clause.
func (l Locator) under(clause int, p rules.Path) bool {
	return l.Clause == clause && len(l.Path) > len(p) && slices.Equal(l.Path[:len(p)], p)
}

type entry struct {
	loc  Locator
	kind Kind
}

// Index maps node ids to positions and holds per-node view state.
// Not safe for concurrent use.
type Index struct {
	ids      types.IDGenerator
	byID     map[types.NodeID]entry
	byLoc    map[string]types.NodeID
	expanded map[types.NodeID]bool
	editing  map[types.NodeID]string
}

// NewIndex returns an empty index minting ids from ids.
func NewIndex(ids types.IDGenerator) *Index {
	if ids == nil {
		ids = types.UUIDGenerator{}
	}
	return &Index{
		ids:      ids,
		byID:     make(map[types.NodeID]entry),
		byLoc:    make(map[string]types.NodeID),
		expanded: make(map[types.NodeID]bool),
		editing:  make(map[types.NodeID]string),
	}
}

// Len returns the number of indexed nodes.
func (x *Index) Len() int { return len(x.byID) }

// Locate returns the position and kind of id.
func (x *Index) Locate(id types.NodeID) (Locator, Kind, bool) {
	e, ok := x.byID[id]
	return e.loc, e.kind, ok
}

// ID returns the id of the node at l.
func (x *Index) ID(l Locator) (types.NodeID, bool) {
	id, ok := x.byLoc[l.key()]
	return id, ok
}

// Expanded reports whether id is shown expanded.
func (x *Index) Expanded(id types.NodeID) bool { return x.expanded[id] }

// SetExpanded sets the expanded state of id.
func (x *Index) SetExpanded(id types.NodeID, expanded bool) {
	if _, ok := x.byID[id]; ok {
		x.expanded[id] = expanded
	}
}

// Editing returns the property of id being edited ("name", "operator", ...)
// or "".
func (x *Index) Editing(id types.NodeID) string { return x.editing[id] }

// SetEditing marks a property of id as being edited; "" clears it.
func (x *Index) SetEditing(id types.NodeID, property string) {
	if _, ok := x.byID[id]; !ok {
		return
	}
	if property == "" {
		delete(x.editing, id)
		return
	}
	x.editing[id] = property
}

func (x *Index) add(l Locator, k Kind, expanded bool) types.NodeID {
	id := x.ids.NewNodeID()
	l.Path = append(rules.Path(nil), l.Path...)
	x.byID[id] = entry{loc: l, kind: k}
	x.byLoc[l.key()] = id
	x.expanded[id] = expanded
	return id
}

// addTree indexes n at clause/p and its descendants below it. The subtree
// root takes rootExpanded, descendants take expanded.
func (x *Index) addTree(clause int, p rules.Path, n rules.Node, rootExpanded, expanded bool) types.NodeID {
	id := x.add(Locator{Clause: clause, Path: p}, kindOf(n), rootExpanded)
	if g, ok := n.(rules.ConditionGroup); ok {
		for i, child := range g.Children {
			x.addTree(clause, p.Child(i), child, expanded, expanded)
		}
	}
	return id
}

func kindOf(n rules.Node) Kind {
	if _, ok := n.(rules.ConditionGroup); ok {
		return KindGroup
	}
	return KindCondition
}

// rekey rewrites every locator through fn. fn returns false to drop the
// node and its view state.
func (x *Index) rekey(fn func(Locator) (Locator, bool)) {
	next := make(map[string]types.NodeID, len(x.byLoc))
	for id, e := range x.byID {
		l, keep := fn(e.loc)
		if !keep {
			delete(x.byID, id)
			delete(x.expanded, id)
			delete(x.editing, id)
			continue
		}
		x.byID[id] = entry{loc: l, kind: e.kind}
		next[l.key()] = id
	}
	x.byLoc = next
}

// rekeyChildren relocates the subtrees below group p of clause. fn maps an
// old child index to its new one, or returns false to drop the subtree.
func (x *Index) rekeyChildren(clause int, p rules.Path, fn func(old int) (int, bool)) {
	x.rekey(func(l Locator) (Locator, bool) {
		if !l.under(clause, p) {
			return l, true
		}
		k, keep := fn(l.Path[len(p)])
		if !keep {
			return l, false
		}
		path := append(rules.Path(nil), l.Path...)
		path[len(p)] = k
		return Locator{Clause: l.Clause, Path: path}, true
	})
}

// rekeyClauses renumbers when clauses through fn.
func (x *Index) rekeyClauses(fn func(old int) (int, bool)) {
	x.rekey(func(l Locator) (Locator, bool) {
		c, keep := fn(l.Clause)
		if !keep {
			return l, false
		}
		return Locator{Clause: c, Path: l.Path}, true
	})
}
