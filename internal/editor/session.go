// internal/editor/session.go
package editor

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Editing session.
 *
 * A Session owns one rule value and its node index. Operations address
 * nodes by NodeID, apply the matching rules mutation and then patch the
 * index, so nodes the mutation did not remove keep their ids. A failed
 * operation leaves both rule and index unchanged.
 *
 * Expansion policy: nodes of a loaded rule start collapsed, nodes of a new
 * rule and nodes added later start expanded, and clause roots always start
 * expanded.
 *
 * Not safe for concurrent use; give each editor its own Session.
 */

// Session edits one rule through NodeID addressing.
type Session struct {
	b    *rules.Builder
	rule rules.Rule
	idx  *Index
}

// New starts a session on a newly authored rule.
func New(b *rules.Builder, r rules.Rule, ids types.IDGenerator) *Session {
	s := &Session{b: b, rule: r, idx: NewIndex(ids)}
	s.indexAll(true)
	return s
}

// Load hydrates persisted rule JSON into a session.
func Load(b *rules.Builder, data []byte, ids types.IDGenerator) (*Session, error) {
	r, err := canon.Hydrate(data)
	if err != nil {
		return nil, err
	}
	s := &Session{b: b, rule: r, idx: NewIndex(ids)}
	s.indexAll(false)
	return s, nil
}

func (s *Session) indexAll(expanded bool) {
	switch d := s.rule.Definition.(type) {
	case rules.ConditionGroup:
		s.idx.addTree(0, nil, d, true, expanded)
	case rules.Case:
		for i, w := range d.WhenClauses {
			s.idx.addTree(i, nil, w.When, true, expanded)
		}
	}
}

// Rule returns the current rule value.
func (s *Session) Rule() rules.Rule { return s.rule }

// Index returns the node index, including view state.
func (s *Session) Index() *Index { return s.idx }

// Root returns the id of the root group of clause (zero for condition
// rules).
func (s *Session) Root(clause int) (types.NodeID, error) {
	id, ok := s.idx.ID(Locator{Clause: clause})
	if !ok {
		return "", fmt.Errorf("%w: no root for clause %d", types.ErrUnknownNode, clause)
	}
	return id, nil
}

// Nodes returns every node id in document order.
func (s *Session) Nodes() []types.NodeID {
	var out []types.NodeID
	visit := func(clause int, g rules.ConditionGroup) {
		rules.Walk(g, func(p rules.Path, _ rules.Node) bool {
			if id, ok := s.idx.ID(Locator{Clause: clause, Path: p}); ok {
				out = append(out, id)
			}
			return true
		})
	}
	switch d := s.rule.Definition.(type) {
	case rules.ConditionGroup:
		visit(0, d)
	case rules.Case:
		for i, w := range d.WhenClauses {
			visit(i, w.When)
		}
	}
	return out
}

// Lookup returns the node addressed by id.
func (s *Session) Lookup(id types.NodeID) (rules.Node, Locator, error) {
	l, _, ok := s.idx.Locate(id)
	if !ok {
		return nil, Locator{}, fmt.Errorf("%w: %s", types.ErrUnknownNode, id)
	}
	root, err := s.root(l.Clause)
	if err != nil {
		return nil, Locator{}, err
	}
	n, err := root.At(l.Path)
	if err != nil {
		return nil, Locator{}, err
	}
	return n, l, nil
}

// root returns the root group of clause.
func (s *Session) root(clause int) (rules.ConditionGroup, error) {
	switch d := s.rule.Definition.(type) {
	case rules.ConditionGroup:
		if clause == 0 {
			return d, nil
		}
	case rules.Case:
		if clause >= 0 && clause < len(d.WhenClauses) {
			return d.WhenClauses[clause].When, nil
		}
	default:
		return rules.ConditionGroup{}, fmt.Errorf("%w: %s rule has no condition tree", types.ErrUnknownNode, s.rule.Structure)
	}
	return rules.ConditionGroup{}, fmt.Errorf("%w: clause %d", types.ErrIndexOutOfRange, clause)
}

// update replaces the root group of clause with fn's result.
func (s *Session) update(clause int, fn func(rules.ConditionGroup) (rules.ConditionGroup, error)) error {
	switch d := s.rule.Definition.(type) {
	case rules.ConditionGroup:
		g, err := fn(d)
		if err != nil {
			return err
		}
		s.rule = s.rule.WithDefinition(g)
		return nil
	case rules.Case:
		c, err := rules.UpdateWhen(d, clause, fn)
		if err != nil {
			return err
		}
		s.rule = s.rule.WithDefinition(c)
		return nil
	}
	return fmt.Errorf("%w: %s rule has no condition tree", types.ErrUnknownNode, s.rule.Structure)
}

// locate resolves id and checks its kind.
func (s *Session) locate(id types.NodeID, want Kind) (Locator, error) {
	l, k, ok := s.idx.Locate(id)
	if !ok {
		return Locator{}, fmt.Errorf("%w: %s", types.ErrUnknownNode, id)
	}
	if want != 0 && k != want {
		return Locator{}, fmt.Errorf("%w: %s is a %s, not a %s", types.ErrUnknownNode, id, k, want)
	}
	return l, nil
}

func (s *Session) childCount(l Locator) (int, error) {
	root, err := s.root(l.Clause)
	if err != nil {
		return 0, err
	}
	g, err := root.GroupAt(l.Path)
	if err != nil {
		return 0, err
	}
	return len(g.Children), nil
}

// AddCondition appends a default condition to group parent and returns its
// id.
func (s *Session) AddCondition(parent types.NodeID) (types.NodeID, error) {
	return s.add(parent, s.b.AddCondition)
}

// AddConditionGroup appends a nested group to group parent and returns its
// id.
func (s *Session) AddConditionGroup(parent types.NodeID) (types.NodeID, error) {
	return s.add(parent, s.b.AddConditionGroup)
}

func (s *Session) add(parent types.NodeID, fn func(rules.ConditionGroup, rules.Path) (rules.ConditionGroup, error)) (types.NodeID, error) {
	l, err := s.locate(parent, KindGroup)
	if err != nil {
		return "", err
	}
	n, err := s.childCount(l)
	if err != nil {
		return "", err
	}
	err = s.update(l.Clause, func(root rules.ConditionGroup) (rules.ConditionGroup, error) {
		return fn(root, l.Path)
	})
	if err != nil {
		return "", err
	}
	root, _ := s.root(l.Clause)
	child, err := root.At(l.Path.Child(n))
	if err != nil {
		return "", err
	}
	return s.idx.addTree(l.Clause, l.Path.Child(n), child, true, true), nil
}

// RemoveChild removes child i of group parent. Ids below the removed child
// are released; later siblings keep theirs.
func (s *Session) RemoveChild(parent types.NodeID, i int) error {
	l, err := s.locate(parent, KindGroup)
	if err != nil {
		return err
	}
	err = s.update(l.Clause, func(root rules.ConditionGroup) (rules.ConditionGroup, error) {
		return rules.RemoveChild(root, l.Path, i)
	})
	if err != nil {
		return err
	}
	s.idx.rekeyChildren(l.Clause, l.Path, func(old int) (int, bool) {
		switch {
		case old == i:
			return 0, false
		case old > i:
			return old - 1, true
		}
		return old, true
	})
	return nil
}

// ReorderChildren moves child from of group parent to index to.
func (s *Session) ReorderChildren(parent types.NodeID, from, to int) error {
	l, err := s.locate(parent, KindGroup)
	if err != nil {
		return err
	}
	err = s.update(l.Clause, func(root rules.ConditionGroup) (rules.ConditionGroup, error) {
		return rules.ReorderChildren(root, l.Path, from, to)
	})
	if err != nil {
		return err
	}
	s.idx.rekeyChildren(l.Clause, l.Path, func(old int) (int, bool) {
		return moved(old, from, to), true
	})
	return nil
}

// moved returns the index old ends up at after moving from to to.
func moved(old, from, to int) int {
	switch {
	case old == from:
		return to
	case from < to && old > from && old <= to:
		return old - 1
	case to < from && old >= to && old < from:
		return old + 1
	}
	return old
}

// SetOperator switches the operator of condition cond.
func (s *Session) SetOperator(cond types.NodeID, key string) error {
	l, err := s.locate(cond, KindCondition)
	if err != nil {
		return err
	}
	return s.update(l.Clause, func(root rules.ConditionGroup) (rules.ConditionGroup, error) {
		return root.UpdateCondition(l.Path, func(c rules.Condition) (rules.Condition, error) {
			return s.b.SetOperator(c, key)
		})
	})
}

// Rename renames and pins node id and ends any name edit on it.
func (s *Session) Rename(id types.NodeID, name string) error {
	l, err := s.locate(id, 0)
	if err != nil {
		return err
	}
	err = s.update(l.Clause, func(root rules.ConditionGroup) (rules.ConditionGroup, error) {
		return rules.RenameNode(root, l.Path, name)
	})
	if err != nil {
		return err
	}
	if s.idx.Editing(id) == "name" {
		s.idx.SetEditing(id, "")
	}
	return nil
}

func (s *Session) caseDef() (rules.Case, error) {
	c, ok := s.rule.Definition.(rules.Case)
	if !ok {
		return rules.Case{}, fmt.Errorf("%w: %s rule has no when clauses", types.ErrInvalidRule, s.rule.Structure)
	}
	return c, nil
}

// AddWhenClause appends a default when clause and returns the id of its
// root group.
func (s *Session) AddWhenClause() (types.NodeID, error) {
	c, err := s.caseDef()
	if err != nil {
		return "", err
	}
	if c, err = s.b.AddWhenClause(c); err != nil {
		return "", err
	}
	s.rule = s.rule.WithDefinition(c)
	i := len(c.WhenClauses) - 1
	return s.idx.addTree(i, nil, c.WhenClauses[i].When, true, true), nil
}

// RemoveWhenClause removes clause i and releases the ids of its tree.
func (s *Session) RemoveWhenClause(i int) error {
	c, err := s.caseDef()
	if err != nil {
		return err
	}
	if c, err = rules.RemoveWhenClause(c, i); err != nil {
		return err
	}
	s.rule = s.rule.WithDefinition(c)
	s.idx.rekeyClauses(func(old int) (int, bool) {
		switch {
		case old == i:
			return 0, false
		case old > i:
			return old - 1, true
		}
		return old, true
	})
	return nil
}

// Persist validates the rule and returns its persisted JSON. View state and
// ids never reach the output.
func (s *Session) Persist() ([]byte, error) {
	if err := s.rule.Validate(); err != nil {
		return nil, err
	}
	return canon.Marshal(s.rule)
}
