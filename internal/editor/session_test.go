// internal/editor/session_test.go
package editor_test

import (
	"bytes"
	"errors"
	"math/rand"
	"reflect"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/catalog/catalogtest"
	"github.com/solatis/rulekeeper/internal/editor"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

func newBuilder(t *testing.T) *rules.Builder {
	t.Helper()
	return rules.NewBuilder(catalogtest.Load(t), &types.SequenceGenerator{})
}

// newSession builds Root{Condition 1, Group 2{Condition 2.1}, Condition 3}.
func newSession(t *testing.T) (*editor.Session, types.NodeID) {
	t.Helper()
	b := newBuilder(t)
	r, err := b.NewConditionRule("eligibility")
	if err != nil {
		t.Fatalf("NewConditionRule() error = %v, want nil", err)
	}
	s := editor.New(b, r, &types.SequenceGenerator{})
	root, err := s.Root(0)
	if err != nil {
		t.Fatalf("Root() error = %v, want nil", err)
	}
	if _, err := s.AddConditionGroup(root); err != nil {
		t.Fatalf("AddConditionGroup() error = %v, want nil", err)
	}
	if _, err := s.AddCondition(root); err != nil {
		t.Fatalf("AddCondition() error = %v, want nil", err)
	}
	return s, root
}

func nameOf(t *testing.T, s *editor.Session, id types.NodeID) string {
	t.Helper()
	n, _, err := s.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup(%s) error = %v, want nil", id, err)
	}
	switch x := n.(type) {
	case rules.Condition:
		return x.Name
	case rules.ConditionGroup:
		return x.Name
	}
	t.Fatalf("Lookup(%s) = %T", id, n)
	return ""
}

func names(t *testing.T, s *editor.Session) []string {
	t.Helper()
	var out []string
	for _, id := range s.Nodes() {
		out = append(out, nameOf(t, s, id))
	}
	return out
}

func TestNew_IndexesEveryNodeExpanded(t *testing.T) {
	s, root := newSession(t)

	want := []string{"Root", "Condition 1", "Group 2", "Condition 2.1", "Condition 3"}
	if got := names(t, s); !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
	if s.Index().Len() != len(want) {
		t.Errorf("Len() = %d, want %d", s.Index().Len(), len(want))
	}
	for _, id := range s.Nodes() {
		if !s.Index().Expanded(id) {
			t.Errorf("%s collapsed, want expanded", nameOf(t, s, id))
		}
	}
	if _, _, err := s.Lookup(root); err != nil {
		t.Errorf("Lookup(root) error = %v, want nil", err)
	}
}

func TestLoad_CollapsesAllButRoot(t *testing.T) {
	s, _ := newSession(t)
	data, err := s.Persist()
	if err != nil {
		t.Fatalf("Persist() error = %v, want nil", err)
	}

	loaded, err := editor.Load(newBuilder(t), data, &types.SequenceGenerator{})
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	root, _ := loaded.Root(0)
	for _, id := range loaded.Nodes() {
		if got, want := loaded.Index().Expanded(id), id == root; got != want {
			t.Errorf("Expanded(%s) = %v, want %v", nameOf(t, loaded, id), got, want)
		}
	}

	added, err := loaded.AddCondition(root)
	if err != nil {
		t.Fatalf("AddCondition() error = %v, want nil", err)
	}
	if !loaded.Index().Expanded(added) {
		t.Errorf("added node collapsed, want expanded")
	}
}

func TestLoad_RejectsInvalidJSON(t *testing.T) {
	if _, err := editor.Load(newBuilder(t), []byte(`{"structure":`), nil); !errors.Is(err, types.ErrInvalidJSON) {
		t.Errorf("Load() error = %v, want ErrInvalidJSON", err)
	}
}

func TestRemoveChild_KeepsSiblingIDs(t *testing.T) {
	s, root := newSession(t)
	ids := s.Nodes()
	group, cond3 := ids[2], ids[4]

	if err := s.RemoveChild(root, 0); err != nil {
		t.Fatalf("RemoveChild() error = %v, want nil", err)
	}

	if _, _, err := s.Lookup(ids[1]); !errors.Is(err, types.ErrUnknownNode) {
		t.Errorf("Lookup(removed) error = %v, want ErrUnknownNode", err)
	}
	want := []string{"Root", "Group 1", "Condition 1.1", "Condition 2"}
	if got := names(t, s); !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
	if got := s.Nodes(); !reflect.DeepEqual(got, []types.NodeID{root, group, ids[3], cond3}) {
		t.Errorf("Nodes() = %v, want surviving ids in order", got)
	}
	l, kind, _ := s.Index().Locate(ids[3])
	if kind != editor.KindCondition || !reflect.DeepEqual(l.Path, rules.Path{0, 0}) {
		t.Errorf("Locate(2.1) = %v %v, want condition at [0 0]", l, kind)
	}
}

func TestReorderChildren_MovesIDsWithSubtrees(t *testing.T) {
	s, root := newSession(t)
	ids := s.Nodes()
	before := make(map[types.NodeID]rules.Node)
	for _, id := range ids {
		n, _, _ := s.Lookup(id)
		before[id] = n
	}

	if err := s.ReorderChildren(root, 0, 2); err != nil {
		t.Fatalf("ReorderChildren() error = %v, want nil", err)
	}

	want := []types.NodeID{root, ids[2], ids[3], ids[4], ids[1]}
	if got := s.Nodes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Nodes() = %v, want %v", got, want)
	}
	for _, id := range ids[1:] {
		n, _, _ := s.Lookup(id)
		if !reflect.DeepEqual(n, before[id]) {
			t.Errorf("node %s changed by reorder", id)
		}
	}
	if err := s.ReorderChildren(root, 0, 3); !errors.Is(err, types.ErrIndexOutOfRange) {
		t.Errorf("ReorderChildren(out of range) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestSetOperatorAndRename(t *testing.T) {
	s, _ := newSession(t)
	ids := s.Nodes()
	cond := ids[1]

	if err := s.SetOperator(cond, "between"); err != nil {
		t.Fatalf("SetOperator() error = %v, want nil", err)
	}
	n, _, _ := s.Lookup(cond)
	if c := n.(rules.Condition); c.Operator != "between" || len(c.Right) != 2 {
		t.Errorf("condition = %s with %d operands, want between with 2", c.Operator, len(c.Right))
	}
	if err := s.SetOperator(ids[2], "equal"); !errors.Is(err, types.ErrUnknownNode) {
		t.Errorf("SetOperator(group) error = %v, want ErrUnknownNode", err)
	}

	s.Index().SetEditing(ids[2], "name")
	if err := s.Rename(ids[2], "Loyalty"); err != nil {
		t.Fatalf("Rename() error = %v, want nil", err)
	}
	if s.Index().Editing(ids[2]) != "" {
		t.Errorf("Editing() = %q after rename, want cleared", s.Index().Editing(ids[2]))
	}
	if got := nameOf(t, s, ids[2]); got != "Loyalty" {
		t.Errorf("name = %q, want Loyalty", got)
	}
}

func TestWhenClauses(t *testing.T) {
	b := newBuilder(t)
	r, err := b.NewCaseRule("tier", types.TypeText)
	if err != nil {
		t.Fatalf("NewCaseRule() error = %v, want nil", err)
	}
	s := editor.New(b, r, &types.SequenceGenerator{})

	second, err := s.AddWhenClause()
	if err != nil {
		t.Fatalf("AddWhenClause() error = %v, want nil", err)
	}
	if _, err := s.AddCondition(second); err != nil {
		t.Fatalf("AddCondition() error = %v, want nil", err)
	}
	third, err := s.AddWhenClause()
	if err != nil {
		t.Fatalf("AddWhenClause() error = %v, want nil", err)
	}

	if err := s.RemoveWhenClause(0); err != nil {
		t.Fatalf("RemoveWhenClause() error = %v, want nil", err)
	}
	if root, _ := s.Root(0); root != second {
		t.Errorf("Root(0) = %s, want %s", root, second)
	}
	if root, _ := s.Root(1); root != third {
		t.Errorf("Root(1) = %s, want %s", root, third)
	}
	if got := len(s.Nodes()); got != s.Index().Len() || got != 5 {
		t.Errorf("len(Nodes()) = %d, Len() = %d, want 5", got, s.Index().Len())
	}

	cs := editor.New(b, mustConditionRule(t, b), nil)
	if _, err := cs.AddWhenClause(); !errors.Is(err, types.ErrInvalidRule) {
		t.Errorf("AddWhenClause(condition rule) error = %v, want ErrInvalidRule", err)
	}
	if err := s.RemoveWhenClause(0); err != nil {
		t.Fatalf("RemoveWhenClause() error = %v, want nil", err)
	}
	if err := s.RemoveWhenClause(0); !errors.Is(err, types.ErrCannotRemoveLastClause) {
		t.Errorf("RemoveWhenClause(last) error = %v, want ErrCannotRemoveLastClause", err)
	}
}

func mustConditionRule(t *testing.T, b *rules.Builder) rules.Rule {
	t.Helper()
	r, err := b.NewConditionRule("x")
	if err != nil {
		t.Fatalf("NewConditionRule() error = %v, want nil", err)
	}
	return r
}

func TestPersist_IsCanonical(t *testing.T) {
	s, root := newSession(t)
	s.Index().SetEditing(root, "name")
	s.Index().SetExpanded(root, false)

	got, err := s.Persist()
	if err != nil {
		t.Fatalf("Persist() error = %v, want nil", err)
	}
	want, err := canon.Marshal(s.Rule())
	if err != nil {
		t.Fatalf("Marshal() error = %v, want nil", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Persist() = %s, want %s", got, want)
	}
	if bytes.Contains(got, []byte(root)) {
		t.Errorf("Persist() leaked node id %s", root)
	}
}

// TestSession_IndexConsistent applies random operation sequences and checks
// that every id resolves to a node of its recorded kind and that nodes
// outside the mutated group keep their ids and positions.
func TestSession_IndexConsistent(t *testing.T) {
	b := newBuilder(t)
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("index tracks the tree", prop.ForAll(
		func(seed int64) (bool, error) {
			rng := rand.New(rand.NewSource(seed))
			r, err := b.NewConditionRule("x")
			if err != nil {
				return false, err
			}
			s := editor.New(b, r, &types.SequenceGenerator{})
			for step := 0; step < 20; step++ {
				groups := groupIDs(s)
				parent := groups[rng.Intn(len(groups))]
				pl, _, _ := s.Index().Locate(parent)
				before := snapshot(s)

				n := childCount(s, parent)
				switch rng.Intn(5) {
				case 0:
					_, err = s.AddCondition(parent)
				case 1:
					if len(pl.Path) < 3 {
						_, err = s.AddConditionGroup(parent)
					}
				case 2:
					if n > 1 {
						err = s.RemoveChild(parent, rng.Intn(n))
					}
				case 3:
					err = s.ReorderChildren(parent, rng.Intn(n), rng.Intn(n))
				case 4:
					err = s.Rename(parent, "renamed")
				}
				if err != nil {
					return false, err
				}
				if !consistent(s) {
					return false, nil
				}
				for id, l := range before {
					if l.under(pl) {
						continue
					}
					after, _, ok := s.Index().Locate(id)
					if !ok || !slices.Equal(after.Path, l.Path) {
						return false, nil
					}
				}
			}
			return true, nil
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

type loc struct{ editor.Locator }

// under reports whether l is inside the subtree of group p, p excluded.
func (l loc) under(p editor.Locator) bool {
	if l.Clause != p.Clause || len(l.Path) <= len(p.Path) {
		return false
	}
	return slices.Equal(l.Path[:len(p.Path)], p.Path)
}

func snapshot(s *editor.Session) map[types.NodeID]loc {
	out := make(map[types.NodeID]loc)
	for _, id := range s.Nodes() {
		l, _, _ := s.Index().Locate(id)
		out[id] = loc{l}
	}
	return out
}

func groupIDs(s *editor.Session) []types.NodeID {
	var out []types.NodeID
	for _, id := range s.Nodes() {
		if _, k, _ := s.Index().Locate(id); k == editor.KindGroup {
			out = append(out, id)
		}
	}
	return out
}

func childCount(s *editor.Session, id types.NodeID) int {
	n, _, _ := s.Lookup(id)
	return len(n.(rules.ConditionGroup).Children)
}

// consistent checks the index is a bijection onto the tree's nodes with
// matching kinds.
func consistent(s *editor.Session) bool {
	nodes := s.Nodes()
	if len(nodes) != s.Index().Len() {
		return false
	}
	total := 0
	rules.Walk(s.Rule().Conditions(), func(rules.Path, rules.Node) bool {
		total++
		return true
	})
	if total != len(nodes) {
		return false
	}
	for _, id := range nodes {
		n, _, err := s.Lookup(id)
		if err != nil {
			return false
		}
		_, kind, _ := s.Index().Locate(id)
		_, isGroup := n.(rules.ConditionGroup)
		if isGroup != (kind == editor.KindGroup) {
			return false
		}
	}
	return true
}
