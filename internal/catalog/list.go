package catalog

import "github.com/solatis/rulekeeper/internal/types"

// ListFields returns the field tree restricted to fields of type expected.
// Categories whose filtered children are empty are omitted; categories with
// matching descendants are kept. An empty expected type keeps every field.
func (c *Catalog) ListFields(expected types.Type) Tree {
	return filter(c.fields, func(n Node) bool {
		f, ok := n.(*Field)
		return ok && (expected == "" || f.Type == expected)
	})
}

// ListFunctions returns the function tree restricted to functions returning
// expected, with the same category pruning as ListFields.
func (c *Catalog) ListFunctions(expected types.Type) Tree {
	return filter(c.functions, func(n Node) bool {
		f, ok := n.(*Function)
		return ok && (expected == "" || f.ReturnType == expected)
	})
}

// filter is a pure traversal; the input tree is never modified.
func filter(t Tree, keep func(Node) bool) Tree {
	var out Tree
	for _, e := range t {
		if cat, ok := e.Node.(*Category); ok {
			children := filter(cat.Children, keep)
			if len(children) == 0 {
				continue
			}
			out = append(out, Entry{Name: e.Name, Node: &Category{Label: cat.Label, Children: children}})
			continue
		}
		if keep(e.Node) {
			out = append(out, e)
		}
	}
	return out
}

// FieldPaths returns the dotted paths of every field in declaration order.
func (c *Catalog) FieldPaths() []string {
	return c.paths(c.fields)
}

// FunctionPaths returns the dotted paths of every function in declaration order.
func (c *Catalog) FunctionPaths() []string {
	return c.paths(c.functions)
}

func (c *Catalog) paths(t Tree) []string {
	var out []string
	c.walk(t, nil, func(segs []string, _ Node) bool {
		out = append(out, c.Join(segs...))
		return true
	})
	return out
}
