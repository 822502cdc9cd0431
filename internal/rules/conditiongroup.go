// internal/rules/conditiongroup.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Condition groups and tree mutation.
 *
 * A ConditionGroup combines its children with AND or OR and optionally
 * negates the result. Nodes are addressed by Path, the child indexes from a
 * root group. Mutations copy the groups along the path and share every other
 * subtree, so untouched siblings are the same values before and after.
 *
 * An empty group evaluates to its conjunction's identity. It is an
 * incomplete state editors avoid, not an error.
 */

// Node is a child of a condition group: Condition or ConditionGroup.
type Node interface {
	isNode()
}

// ConditionGroup is a boolean combination of conditions and nested groups.
type ConditionGroup struct {
	Name        string
	NamePinned  bool
	Conjunction types.Conjunction
	Not         bool
	Children    []Node
}

func (Condition) isNode()            {}
func (ConditionGroup) isNode()       {}
func (ConditionGroup) isDefinition() {}

// Path addresses a node by child indexes from a root group. The empty path
// is the root.
type Path []int

// Child returns p extended by i, never sharing p's backing array.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// Parent splits p into its parent path and last index. The root has no
// parent and returns (nil, -1).
func (p Path) Parent() (Path, int) {
	if len(p) == 0 {
		return nil, -1
	}
	return append(Path(nil), p[:len(p)-1]...), p[len(p)-1]
}

// Rename sets a user-chosen name and pins it.
func (g ConditionGroup) Rename(name string) ConditionGroup {
	g.Name = name
	g.NamePinned = true
	return g
}

// At returns the node at p.
func (g ConditionGroup) At(p Path) (Node, error) {
	var cur Node = g
	for depth, i := range p {
		grp, ok := cur.(ConditionGroup)
		if !ok {
			return nil, fmt.Errorf("%w: %v is a condition at depth %d", types.ErrIndexOutOfRange, p, depth)
		}
		if i < 0 || i >= len(grp.Children) {
			return nil, fmt.Errorf("%w: child %d of %d at depth %d", types.ErrIndexOutOfRange, i, len(grp.Children), depth)
		}
		cur = grp.Children[i]
	}
	return cur, nil
}

// GroupAt returns the group at p.
func (g ConditionGroup) GroupAt(p Path) (ConditionGroup, error) {
	n, err := g.At(p)
	if err != nil {
		return ConditionGroup{}, err
	}
	grp, ok := n.(ConditionGroup)
	if !ok {
		return ConditionGroup{}, fmt.Errorf("%w: %v is not a group", types.ErrIndexOutOfRange, p)
	}
	return grp, nil
}

// ConditionAt returns the condition at p.
func (g ConditionGroup) ConditionAt(p Path) (Condition, error) {
	n, err := g.At(p)
	if err != nil {
		return Condition{}, err
	}
	c, ok := n.(Condition)
	if !ok {
		return Condition{}, fmt.Errorf("%w: %v is not a condition", types.ErrIndexOutOfRange, p)
	}
	return c, nil
}

// Update replaces the node at p with fn's result, copying the groups on the
// way down. Replacing the root requires fn to return a ConditionGroup.
func (g ConditionGroup) Update(p Path, fn func(Node) (Node, error)) (ConditionGroup, error) {
	if len(p) == 0 {
		n, err := fn(g)
		if err != nil {
			return ConditionGroup{}, err
		}
		root, ok := n.(ConditionGroup)
		if !ok {
			return ConditionGroup{}, fmt.Errorf("%w: root must be a group", types.ErrInvalidRule)
		}
		return root, nil
	}
	i := p[0]
	if i < 0 || i >= len(g.Children) {
		return ConditionGroup{}, fmt.Errorf("%w: child %d of %d", types.ErrIndexOutOfRange, i, len(g.Children))
	}
	var (
		next Node
		err  error
	)
	if len(p) == 1 {
		next, err = fn(g.Children[i])
	} else {
		sub, ok := g.Children[i].(ConditionGroup)
		if !ok {
			return ConditionGroup{}, fmt.Errorf("%w: child %d is a condition", types.ErrIndexOutOfRange, i)
		}
		next, err = sub.Update(p[1:], fn)
	}
	if err != nil {
		return ConditionGroup{}, err
	}
	if next == nil {
		return ConditionGroup{}, fmt.Errorf("%w: nil node", types.ErrInvalidRule)
	}
	children := append([]Node(nil), g.Children...)
	children[i] = next
	g.Children = children
	return g, nil
}

// updateGroup applies fn to the group at p.
func (g ConditionGroup) updateGroup(p Path, fn func(ConditionGroup) (ConditionGroup, error)) (ConditionGroup, error) {
	return g.Update(p, func(n Node) (Node, error) {
		grp, ok := n.(ConditionGroup)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a group", types.ErrIndexOutOfRange, p)
		}
		return fn(grp)
	})
}

// UpdateCondition applies fn to the condition at p.
func (g ConditionGroup) UpdateCondition(p Path, fn func(Condition) (Condition, error)) (ConditionGroup, error) {
	return g.Update(p, func(n Node) (Node, error) {
		c, ok := n.(Condition)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a condition", types.ErrIndexOutOfRange, p)
		}
		return fn(c)
	})
}

// NewConditionGroup builds a group that will sit at path p, holding one
// default condition.
func (b *Builder) NewConditionGroup(p Path) (ConditionGroup, error) {
	g := ConditionGroup{Conjunction: b.cat.Settings().DefaultConjunction}
	g.Name = AutoName(g, p)
	c, err := b.NewCondition("")
	if err != nil {
		return ConditionGroup{}, err
	}
	c.Name = AutoName(c, p.Child(0))
	g.Children = []Node{c}
	return g, nil
}

// AddCondition appends a default condition to the group at parent.
func (b *Builder) AddCondition(root ConditionGroup, parent Path) (ConditionGroup, error) {
	return root.updateGroup(parent, func(g ConditionGroup) (ConditionGroup, error) {
		c, err := b.NewCondition("")
		if err != nil {
			return ConditionGroup{}, err
		}
		c.Name = AutoName(c, freePath(g, parent))
		g.Children = append(append([]Node(nil), g.Children...), c)
		return g, nil
	})
}

// AddConditionGroup appends a nested group holding one default condition to
// the group at parent.
func (b *Builder) AddConditionGroup(root ConditionGroup, parent Path) (ConditionGroup, error) {
	if len(parent)+1 >= types.MaxNestingDepth {
		return ConditionGroup{}, fmt.Errorf("%w: nesting exceeds %d levels", types.ErrIndexOutOfRange, types.MaxNestingDepth)
	}
	return root.updateGroup(parent, func(g ConditionGroup) (ConditionGroup, error) {
		sub, err := b.NewConditionGroup(freePath(g, parent))
		if err != nil {
			return ConditionGroup{}, err
		}
		g.Children = append(append([]Node(nil), g.Children...), sub)
		return g, nil
	})
}

// RemoveChild removes child i of the group at parent and renumbers the
// auto-named children that follow it.
func RemoveChild(root ConditionGroup, parent Path, i int) (ConditionGroup, error) {
	return root.updateGroup(parent, func(g ConditionGroup) (ConditionGroup, error) {
		if i < 0 || i >= len(g.Children) {
			return ConditionGroup{}, fmt.Errorf("%w: child %d of %d", types.ErrIndexOutOfRange, i, len(g.Children))
		}
		g.Children = removeAt(g.Children, i)
		return renumberFrom(g, parent, i), nil
	})
}

// renumberFrom renames children i.. of g, which sits at p, for their shift
// one position left. Earlier children are shared unchanged.
func renumberFrom(g ConditionGroup, p Path, i int) ConditionGroup {
	children := append([]Node(nil), g.Children...)
	for k := i; k < len(children); k++ {
		children[k] = relocate(children, k, p.Child(k+1), p.Child(k))
	}
	g.Children = children
	return g
}

// ReorderChildren moves child from to index to within the group at parent.
// Names are not changed and every moved subtree is shared unchanged.
func ReorderChildren(root ConditionGroup, parent Path, from, to int) (ConditionGroup, error) {
	return root.updateGroup(parent, func(g ConditionGroup) (ConditionGroup, error) {
		children, err := move(g.Children, from, to)
		if err != nil {
			return ConditionGroup{}, err
		}
		g.Children = children
		return g, nil
	})
}

// ReplaceChild substitutes child i of the group at parent.
func ReplaceChild(root ConditionGroup, parent Path, i int, n Node) (ConditionGroup, error) {
	return root.Update(parent.Child(i), func(Node) (Node, error) {
		return n, nil
	})
}

// SetConjunction changes the conjunction of the group at p.
func SetConjunction(root ConditionGroup, p Path, c types.Conjunction) (ConditionGroup, error) {
	if !c.Valid() {
		return ConditionGroup{}, fmt.Errorf("%w: conjunction %q", types.ErrIncompatibleType, c)
	}
	return root.updateGroup(p, func(g ConditionGroup) (ConditionGroup, error) {
		g.Conjunction = c
		return g, nil
	})
}

// SetNot sets the negation flag of the group at p.
func SetNot(root ConditionGroup, p Path, not bool) (ConditionGroup, error) {
	return root.updateGroup(p, func(g ConditionGroup) (ConditionGroup, error) {
		g.Not = not
		return g, nil
	})
}

// RenameNode renames and pins the node at p.
func RenameNode(root ConditionGroup, p Path, name string) (ConditionGroup, error) {
	return root.Update(p, func(n Node) (Node, error) {
		switch x := n.(type) {
		case Condition:
			return x.Rename(name), nil
		case ConditionGroup:
			return x.Rename(name), nil
		}
		return nil, fmt.Errorf("%w: unknown node type %T", types.ErrInvalidRule, n)
	})
}

// Walk visits g and its descendants depth-first in document order. fn
// returning false skips the node's children.
func Walk(g ConditionGroup, fn func(p Path, n Node) bool) {
	walk(g, nil, fn)
}

func walk(n Node, p Path, fn func(Path, Node) bool) {
	if !fn(p, n) {
		return
	}
	if g, ok := n.(ConditionGroup); ok {
		for i, child := range g.Children {
			walk(child, p.Child(i), fn)
		}
	}
}

// move returns a copy of s with element from relocated to index to.
func move[T any](s []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(s) || to < 0 || to >= len(s) {
		return nil, fmt.Errorf("%w: move %d -> %d of %d", types.ErrIndexOutOfRange, from, to, len(s))
	}
	out := removeAt(s, from)
	out = append(out, s[from])
	copy(out[to+1:], out[to:len(out)-1])
	out[to] = s[from]
	return out, nil
}
