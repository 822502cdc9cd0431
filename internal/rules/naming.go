// internal/rules/naming.go
package rules

import (
	"strconv"
	"strings"
)

/*
 * Display names.
 *
 * Auto names encode a node's position, scoped by its parent's path:
 *   root group               "Root"
 *   second child of root     "Condition 2" / "Group 2"
 *   first child of Group 2   "Condition 2.1"
 *   when clause i            "Result i+1"
 *
 * A node renamed by the user is pinned and keeps its name through
 * renumbering. Reordering never renames, so a moved subtree stays
 * byte-identical and its auto names may no longer match positions. Removal
 * renames a following sibling only while it still carries the auto name of
 * its old position and the new name is free among its siblings. New nodes
 * take their positional name when free and the lowest unused number
 * otherwise, so auto-named siblings never share a name.
 *
 * Pin flags are not persisted. On load, a name in auto form is unpinned
 * wherever it sits; any other name is pinned.
 */

const (
	RootName        = "Root"
	DefaultElseName = "Default"
	conditionPrefix = "Condition"
	groupPrefix     = "Group"
	resultPrefix    = "Result"
)

// AutoName returns the generated name for n at path p.
func AutoName(n Node, p Path) string {
	if len(p) == 0 {
		return RootName
	}
	prefix := conditionPrefix
	if _, ok := n.(ConditionGroup); ok {
		prefix = groupPrefix
	}
	return prefix + " " + p.String()
}

// ResultName returns the generated name of when clause i.
func ResultName(i int) string {
	return resultPrefix + " " + strconv.Itoa(i+1)
}

// String formats p as 1-based dotted positions ("2.1").
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx + 1)
	}
	return strings.Join(parts, ".")
}

// nodeName returns the display name of a condition or group.
func nodeName(n Node) string {
	switch x := n.(type) {
	case Condition:
		return x.Name
	case ConditionGroup:
		return x.Name
	}
	return ""
}

func nameTaken(siblings []Node, k int, name string) bool {
	for j, n := range siblings {
		if j != k && nodeName(n) == name {
			return true
		}
	}
	return false
}

// relocate returns siblings[k] renamed for its move from path old to path
// cur. Descendants are relocated the same way within their own groups.
func relocate(siblings []Node, k int, old, cur Path) Node {
	switch x := siblings[k].(type) {
	case Condition:
		if !x.NamePinned && x.Name == AutoName(x, old) && !nameTaken(siblings, k, AutoName(x, cur)) {
			x.Name = AutoName(x, cur)
		}
		return x
	case ConditionGroup:
		if !x.NamePinned && x.Name == AutoName(x, old) && !nameTaken(siblings, k, AutoName(x, cur)) {
			x.Name = AutoName(x, cur)
		}
		children := append([]Node(nil), x.Children...)
		for j := range children {
			children[j] = relocate(children, j, old.Child(j), cur.Child(j))
		}
		x.Children = children
		return x
	}
	return siblings[k]
}

// autoNumber returns n when name is "Condition s.n" or "Group s.n" with s
// the scope of the group at parent.
func autoNumber(name string, parent Path) (int, bool) {
	for _, prefix := range []string{conditionPrefix, groupPrefix} {
		rest, ok := strings.CutPrefix(name, prefix+" ")
		if !ok {
			continue
		}
		if len(parent) > 0 {
			if rest, ok = strings.CutPrefix(rest, parent.String()+"."); !ok {
				return 0, false
			}
		}
		return position(rest)
	}
	return 0, false
}

// position parses a canonical 1-based position ("3", not "03" or "+3").
func position(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || strconv.Itoa(n) != s {
		return 0, false
	}
	return n, true
}

// freePath returns the path for a new child of g, which sits at parent:
// the next position when its auto name is free, else the lowest number no
// sibling uses.
func freePath(g ConditionGroup, parent Path) Path {
	used := make(map[int]bool, len(g.Children))
	for _, c := range g.Children {
		if n, ok := autoNumber(nodeName(c), parent); ok {
			used[n] = true
		}
	}
	n := len(g.Children) + 1
	if used[n] {
		for n = 1; used[n]; n++ {
		}
	}
	return parent.Child(n - 1)
}

// isAutoName reports whether name has the auto form for n's kind.
func isAutoName(n Node, name string) bool {
	prefix := conditionPrefix
	if _, ok := n.(ConditionGroup); ok {
		prefix = groupPrefix
	}
	rest, ok := strings.CutPrefix(name, prefix+" ")
	if !ok {
		return false
	}
	for _, part := range strings.Split(rest, ".") {
		if _, ok := position(part); !ok {
			return false
		}
	}
	return true
}

// isResultName reports whether name has the form "Result N".
func isResultName(name string) bool {
	rest, ok := strings.CutPrefix(name, resultPrefix+" ")
	if !ok {
		return false
	}
	_, ok = position(rest)
	return ok
}

// freeResult returns the index whose ResultName a new clause of c takes.
func freeResult(c Case) int {
	used := make(map[int]bool, len(c.WhenClauses))
	for _, w := range c.WhenClauses {
		if rest, ok := strings.CutPrefix(w.ResultName, resultPrefix+" "); ok {
			if n, ok := position(rest); ok {
				used[n] = true
			}
		}
	}
	n := len(c.WhenClauses) + 1
	if used[n] {
		for n = 1; used[n]; n++ {
		}
	}
	return n - 1
}

// PinNames marks every node of g whose name is not in auto form as pinned.
// Used after loading a persisted tree, where pin flags are not stored.
func PinNames(g ConditionGroup) ConditionGroup {
	return pinNames(g, nil)
}

func pinNames(g ConditionGroup, p Path) ConditionGroup {
	if len(p) == 0 {
		g.NamePinned = g.Name != RootName
	} else {
		g.NamePinned = !isAutoName(g, g.Name)
	}
	children := make([]Node, len(g.Children))
	for i, child := range g.Children {
		cp := p.Child(i)
		switch n := child.(type) {
		case Condition:
			n.NamePinned = !isAutoName(n, n.Name)
			children[i] = n
		case ConditionGroup:
			children[i] = pinNames(n, cp)
		}
	}
	g.Children = children
	return g
}

// PinResultNames marks when clauses whose result name is not of the form
// "Result N" as pinned, and pins names inside every when group.
func PinResultNames(c Case) Case {
	clauses := make([]WhenClause, len(c.WhenClauses))
	for i, w := range c.WhenClauses {
		w.NamePinned = !isResultName(w.ResultName)
		w.When = PinNames(w.When)
		clauses[i] = w
	}
	c.WhenClauses = clauses
	return c
}
