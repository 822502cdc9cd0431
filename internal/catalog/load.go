// internal/catalog/load.go
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Catalog loading.
 *
 * Decodes the catalog service payload
 *   { fields, funcs, operators, types, expressionOperators, settings }
 * from JSON or YAML. Both go through yaml.Node: JSON is a YAML subset and
 * mapping nodes keep key order, which encoding/json maps would lose.
 *
 * Flat dotted keys ("TEXT.CONCAT") are regrouped into categories at any
 * level, so {"TEXT.CONCAT": ..., "TEXT.UPPER": ...} and
 * {"TEXT": {"children": {"CONCAT": ..., "UPPER": ...}}} load identically.
 * A regrouped category is labelled with its segment name.
 *
 * Leaf detection:
 *   - category: has "children", or "type": "!struct" with "subfields"
 *   - field: has "type"
 *   - function: has "returnType"
 */

// LoadFile reads and parses a catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(data)
}

// Load parses a catalog payload in JSON or YAML.
func Load(data []byte) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("parse catalog: empty document")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse catalog: top level must be an object")
	}

	sections := make(map[string]*yaml.Node)
	for _, p := range pairs(doc) {
		sections[p.key] = p.value
	}

	var def Definition
	if n := sections["settings"]; n != nil {
		var raw struct {
			FieldSeparator     string   `yaml:"fieldSeparator"`
			DefaultConjunction string   `yaml:"defaultConjunction"`
			NumericOperators   []string `yaml:"numericOperators"`
		}
		if err := n.Decode(&raw); err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		def.Settings = Settings{
			FieldSeparator:     raw.FieldSeparator,
			DefaultConjunction: types.Conjunction(strings.ToUpper(raw.DefaultConjunction)),
			NumericOperators:   raw.NumericOperators,
		}
	}
	sep := def.Settings.FieldSeparator
	if sep == "" {
		sep = "."
	}

	var err error
	if n := sections["fields"]; n != nil {
		if def.Fields, err = decodeTree(n, sep, decodeField); err != nil {
			return nil, fmt.Errorf("fields: %w", err)
		}
	}
	funcs := sections["funcs"]
	if funcs == nil {
		funcs = sections["functions"]
	}
	if funcs != nil {
		if def.Functions, err = decodeTree(funcs, sep, decodeFunction); err != nil {
			return nil, fmt.Errorf("funcs: %w", err)
		}
	}
	if n := sections["operators"]; n != nil {
		if def.Operators, err = decodeOperators(n); err != nil {
			return nil, fmt.Errorf("operators: %w", err)
		}
	}
	if n := sections["expressionOperators"]; n != nil {
		if def.ExpressionOperators, err = decodeExpressionOperators(n); err != nil {
			return nil, fmt.Errorf("expressionOperators: %w", err)
		}
	}
	if n := sections["types"]; n != nil {
		if def.Types, err = decodeTypes(n); err != nil {
			return nil, fmt.Errorf("types: %w", err)
		}
	}

	return New(def)
}

type pair struct {
	key   string
	value *yaml.Node
}

// pairs returns the key/value pairs of a mapping node in document order.
func pairs(n *yaml.Node) []pair {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, pair{key: n.Content[i].Value, value: n.Content[i+1]})
	}
	return out
}

// child returns the value of key in a mapping node, or nil.
func child(n *yaml.Node, key string) *yaml.Node {
	for _, p := range pairs(n) {
		if p.key == key {
			return p.value
		}
	}
	return nil
}

type leafDecoder func(n *yaml.Node) (Node, error)

// decodeTree decodes an ordered mapping of name -> category|leaf, regrouping
// dotted names into nested categories.
func decodeTree(n *yaml.Node, sep string, leaf leafDecoder) (Tree, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected an object, got %s", kindName(n))
	}
	var t Tree
	for _, p := range pairs(n) {
		if p.value.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%q: expected an object, got %s", p.key, kindName(p.value))
		}
		node, err := decodeNode(p.value, sep, leaf)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p.key, err)
		}
		if err := insert(&t, strings.Split(p.key, sep), node); err != nil {
			return nil, fmt.Errorf("%q: %w", p.key, err)
		}
	}
	return t, nil
}

func decodeNode(n *yaml.Node, sep string, leaf leafDecoder) (Node, error) {
	children := child(n, "children")
	if children == nil {
		if typ := child(n, "type"); typ != nil && typ.Value == "!struct" {
			children = child(n, "subfields")
			if children == nil {
				children = &yaml.Node{Kind: yaml.MappingNode}
			}
		}
	}
	if children == nil {
		return leaf(n)
	}
	label := ""
	if l := child(n, "label"); l != nil {
		label = l.Value
	}
	sub, err := decodeTree(children, sep, leaf)
	if err != nil {
		return nil, err
	}
	return &Category{Label: label, Children: sub}, nil
}

// insert places node at segs, creating intermediate categories on demand.
func insert(t *Tree, segs []string, node Node) error {
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("empty path segment")
		}
	}
	if len(segs) == 1 {
		for _, e := range *t {
			if e.Name == segs[0] {
				// Merge explicit category declarations into regrouped ones.
				existing, ok1 := e.Node.(*Category)
				incoming, ok2 := node.(*Category)
				if ok1 && ok2 {
					if existing.Label == segs[0] && incoming.Label != "" {
						existing.Label = incoming.Label
					}
					for _, ce := range incoming.Children {
						if err := insert(&existing.Children, []string{ce.Name}, ce.Node); err != nil {
							return err
						}
					}
					return nil
				}
				return fmt.Errorf("duplicate name %q", segs[0])
			}
		}
		*t = append(*t, Entry{Name: segs[0], Node: node})
		return nil
	}
	for _, e := range *t {
		if e.Name != segs[0] {
			continue
		}
		cat, ok := e.Node.(*Category)
		if !ok {
			return fmt.Errorf("%q is a leaf, not a category", segs[0])
		}
		return insert(&cat.Children, segs[1:], node)
	}
	cat := &Category{Label: segs[0]}
	*t = append(*t, Entry{Name: segs[0], Node: cat})
	return insert(&cat.Children, segs[1:], node)
}

func decodeField(n *yaml.Node) (Node, error) {
	var raw struct {
		Label string `yaml:"label"`
		Type  string `yaml:"type"`
	}
	if err := n.Decode(&raw); err != nil {
		return nil, err
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("field has no type")
	}
	return &Field{Label: raw.Label, Type: types.Type(raw.Type)}, nil
}

func decodeFunction(n *yaml.Node) (Node, error) {
	var raw struct {
		Label      string `yaml:"label"`
		ReturnType string `yaml:"returnType"`
	}
	if err := n.Decode(&raw); err != nil {
		return nil, err
	}
	if raw.ReturnType == "" {
		return nil, fmt.Errorf("function has no returnType")
	}
	fn := &Function{Label: raw.Label, ReturnType: types.Type(raw.ReturnType)}

	args := child(n, "args")
	dyn := child(n, "dynamicArgs")
	if args != nil && dyn != nil {
		return nil, fmt.Errorf("args and dynamicArgs are mutually exclusive")
	}
	for _, p := range pairs(args) {
		var a struct {
			Type  string `yaml:"type"`
			Label string `yaml:"label"`
		}
		if err := p.value.Decode(&a); err != nil {
			return nil, fmt.Errorf("arg %q: %w", p.key, err)
		}
		if a.Type == "" {
			return nil, fmt.Errorf("arg %q has no type", p.key)
		}
		fn.Args = append(fn.Args, Arg{Name: p.key, Label: a.Label, Type: types.Type(a.Type)})
	}
	if dyn != nil {
		var d struct {
			ArgType      string `yaml:"argType"`
			MinArgs      int    `yaml:"minArgs"`
			MaxArgs      int    `yaml:"maxArgs"`
			DefaultValue any    `yaml:"defaultValue"`
		}
		if err := dyn.Decode(&d); err != nil {
			return nil, fmt.Errorf("dynamicArgs: %w", err)
		}
		if d.ArgType == "" {
			return nil, fmt.Errorf("dynamicArgs has no argType")
		}
		fn.Dynamic = &DynamicArgs{
			ArgType:      types.Type(d.ArgType),
			MinArgs:      d.MinArgs,
			MaxArgs:      d.MaxArgs,
			DefaultValue: d.DefaultValue,
		}
	}
	return fn, nil
}

func decodeOperators(n *yaml.Node) ([]Operator, error) {
	var out []Operator
	for _, p := range pairs(n) {
		var raw struct {
			Label       string   `yaml:"label"`
			Cardinality *int     `yaml:"cardinality"`
			AppliesTo   []string `yaml:"appliesTo"`
		}
		if err := p.value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%q: %w", p.key, err)
		}
		op := Operator{Key: p.key, Label: raw.Label, Cardinality: 1}
		if raw.Cardinality != nil {
			op.Cardinality = *raw.Cardinality
		}
		for _, t := range raw.AppliesTo {
			op.AppliesTo = append(op.AppliesTo, types.Type(t))
		}
		out = append(out, op)
	}
	return out, nil
}

func decodeExpressionOperators(n *yaml.Node) ([]ExpressionOperator, error) {
	var out []ExpressionOperator
	for _, p := range pairs(n) {
		var raw struct {
			Symbol string `yaml:"symbol"`
			Label  string `yaml:"label"`
		}
		if err := p.value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%q: %w", p.key, err)
		}
		out = append(out, ExpressionOperator{Key: p.key, Symbol: raw.Symbol, Label: raw.Label})
	}
	return out, nil
}

func decodeTypes(n *yaml.Node) ([]TypeDef, error) {
	var out []TypeDef
	for _, p := range pairs(n) {
		var raw struct {
			Label                     string   `yaml:"label"`
			DefaultValue              any      `yaml:"defaultValue"`
			Operators                 []string `yaml:"operators"`
			DefaultConditionOperator  string   `yaml:"defaultConditionOperator"`
			DefaultOperator           string   `yaml:"defaultOperator"`
			ValidExpressionOperators  []string `yaml:"validExpressionOperators"`
			DefaultExpressionOperator string   `yaml:"defaultExpressionOperator"`
		}
		if err := p.value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%q: %w", p.key, err)
		}
		td := TypeDef{
			Name:                      types.Type(p.key),
			Label:                     raw.Label,
			DefaultValue:              raw.DefaultValue,
			Operators:                 raw.Operators,
			DefaultConditionOperator:  raw.DefaultConditionOperator,
			ValidExpressionOperators:  raw.ValidExpressionOperators,
			DefaultExpressionOperator: raw.DefaultExpressionOperator,
		}
		if td.DefaultConditionOperator == "" {
			td.DefaultConditionOperator = raw.DefaultOperator
		}
		out = append(out, td)
	}
	return out, nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "object"
	case yaml.SequenceNode:
		return "array"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "value"
	}
}
