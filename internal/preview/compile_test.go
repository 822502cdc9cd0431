// internal/preview/compile_test.go
package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/catalog"
	"github.com/solatis/rulekeeper/internal/catalog/catalogtest"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// JSON fragments in the persisted rule shape.

func fieldJSON(t types.Type, path string) string {
	return fmt.Sprintf(`{"type":"field","returnType":%q,"field":%q}`, t, path)
}

func numJSON(v string) string {
	return fmt.Sprintf(`{"type":"value","returnType":"number","value":%s}`, v)
}

func textJSON(s string) string {
	return fmt.Sprintf(`{"type":"value","returnType":"text","value":%q}`, s)
}

func condJSON(left, op, right string) string {
	return fmt.Sprintf(`{"name":"c","left":%s,"operator":%q,"right":%s}`, left, op, right)
}

func groupJSON(conj string, not bool, children ...string) string {
	return fmt.Sprintf(`{"name":"g","conjunction":%q,"not":%t,"conditions":[%s]}`, conj, not, strings.Join(children, ","))
}

func ruleJSON(structure string, rt types.Type, uuid, def string) string {
	return fmt.Sprintf(`{"structure":%q,"returnType":%q,"ruleType":"test","uuId":%q,"version":1,`+
		`"metadata":{"id":"","description":""},"definition":%s}`, structure, rt, uuid, def)
}

func conditionRule(root string) string {
	return ruleJSON("condition", types.TypeBoolean, "r1", root)
}

func parseRule(t *testing.T, doc string) rules.Rule {
	t.Helper()
	r, err := canon.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("canon.Parse() error = %v, want nil\n%s", err, doc)
	}
	return r
}

func compile(t *testing.T, doc string, opts Options) *Program {
	t.Helper()
	p, err := Compile(context.Background(), parseRule(t, doc), catalogtest.Load(t), opts)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return p
}

// extendedCatalog adds an operator and a function the preview engine does
// not implement.
func extendedCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	doc := catalogtest.JSON
	doc = strings.Replace(doc, `"operators": {`,
		`"operators": {"fuzzy": {"label": "sounds like", "cardinality": 1},`, 1)
	doc = strings.Replace(doc,
		`["equal", "not_equal", "less", "greater", "between", "is_null", "is_not_null"]`,
		`["equal", "not_equal", "less", "greater", "between", "is_null", "is_not_null", "fuzzy"]`, 1)
	doc = strings.Replace(doc, `"funcs": {`,
		`"funcs": {"GEO.DISTANCE": {"label": "Distance", "returnType": "number", "args": {"value": {"type": "number", "label": "Value"}}},`, 1)
	c, err := catalog.Load([]byte(doc))
	if err != nil {
		t.Fatalf("catalog.Load() error = %v, want nil", err)
	}
	return c
}

func TestCompile_RejectsInvalidRule(t *testing.T) {
	// less is not valid for text
	doc := conditionRule(groupJSON("AND", false,
		condJSON(fieldJSON(types.TypeText, "customer.name"), "less", textJSON("m"))))

	_, err := Compile(context.Background(), parseRule(t, doc), catalogtest.Load(t), Options{})
	if !errors.Is(err, types.ErrInvalidRule) {
		t.Fatalf("Compile() error = %v, want ErrInvalidRule", err)
	}
	var verr *types.ValidationError
	if !errors.As(err, &verr) || len(verr.Diagnostics) == 0 {
		t.Errorf("Compile() error = %#v, want ValidationError with diagnostics", err)
	}
}

func TestCompile_Unsupported(t *testing.T) {
	cat := extendedCatalog(t)

	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name: "operator",
			doc: conditionRule(groupJSON("AND", false,
				condJSON(fieldJSON(types.TypeNumber, "score"), "fuzzy", numJSON("1")))),
			wantErr: types.ErrUnsupportedOperator,
		},
		{
			name: "function",
			doc: ruleJSON("expression", types.TypeNumber, "r1",
				`{"type":"function","returnType":"number","function":{"name":"GEO.DISTANCE","args":[{"name":"value","value":`+numJSON("1")+`}]}}`),
			wantErr: types.ErrUnsupportedFunction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(context.Background(), parseRule(t, tt.doc), cat, Options{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompile_OrdersByCost(t *testing.T) {
	between := condJSON(fieldJSON(types.TypeNumber, "customer.age"), "between", "["+numJSON("18")+","+numJSON("65")+"]")
	isNull := condJSON(fieldJSON(types.TypeBoolean, "customer.vip"), "is_null", "null")
	starts := condJSON(fieldJSON(types.TypeText, "customer.name"), "starts_with", textJSON("A"))

	p := compile(t, conditionRule(groupJSON("AND", false, starts, between, isNull)), Options{})

	got := make([]Operator, len(p.Root.Nodes))
	for i, n := range p.Root.Nodes {
		got[i] = n.Condition.Operator
	}
	want := []Operator{OpIsNull, OpBetween, OpStartsWith}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("operator order = %v, want %v", got, want)
		}
	}
	for i := 1; i < len(p.Root.Nodes); i++ {
		if p.Root.Nodes[i-1].cost() > p.Root.Nodes[i].cost() {
			t.Errorf("node %d cost %d > node %d cost %d", i-1, p.Root.Nodes[i-1].cost(), i, p.Root.Nodes[i].cost())
		}
	}
}

func TestCompile_EqualCostKeepsDocumentOrder(t *testing.T) {
	a := condJSON(fieldJSON(types.TypeNumber, "order.total"), "equal", numJSON("1"))
	b := condJSON(fieldJSON(types.TypeNumber, "customer.age"), "equal", numJSON("2"))

	p := compile(t, conditionRule(groupJSON("AND", false, a, b)), Options{})

	res, err := p.Evaluate([]byte(`{"order":{"total":1},"customer":{"age":3}}`))
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if res.Matched() {
		t.Errorf("Matched() = true, want false")
	}
	if p.Root.Nodes[0].cost() != p.Root.Nodes[1].cost() {
		t.Fatalf("costs differ: %d vs %d", p.Root.Nodes[0].cost(), p.Root.Nodes[1].cost())
	}
}

type resolverMap map[types.RuleUUID]string

func (m resolverMap) ResolveRule(_ context.Context, uuid types.RuleUUID, version int) (rules.Rule, error) {
	doc, ok := m[uuid]
	if !ok {
		return rules.Rule{}, fmt.Errorf("%w: %s v%d", types.ErrRuleNotFound, uuid, version)
	}
	return canon.Parse([]byte(doc))
}

func refJSON(uuid string) string {
	return fmt.Sprintf(`{"type":"ruleRef","returnType":"number","id":"REF","uuId":%q,"version":1}`, uuid)
}

func TestCompile_RuleReferences(t *testing.T) {
	double := ruleJSON("expression", types.TypeNumber, "r7",
		`{"type":"expressionGroup","returnType":"number","expressions":[`+fieldJSON(types.TypeNumber, "score")+`,`+numJSON("2")+`],"operators":["*"]}`)
	top := conditionRule(groupJSON("AND", false,
		condJSON(refJSON("r7"), "greater", numJSON("10"))))

	t.Run("resolved", func(t *testing.T) {
		p := compile(t, top, Options{Resolver: resolverMap{"r7": double}})
		for record, want := range map[string]bool{`{"score":6}`: true, `{"score":5}`: false, `{}`: false} {
			res, err := p.Evaluate([]byte(record))
			if err != nil {
				t.Fatalf("Evaluate(%s) error = %v, want nil", record, err)
			}
			if res.Matched() != want {
				t.Errorf("Evaluate(%s) = %v, want %v", record, res.Matched(), want)
			}
		}
	})

	t.Run("no resolver", func(t *testing.T) {
		_, err := Compile(context.Background(), parseRule(t, top), catalogtest.Load(t), Options{})
		if !errors.Is(err, types.ErrRuleNotFound) {
			t.Errorf("Compile() error = %v, want ErrRuleNotFound", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Compile(context.Background(), parseRule(t, top), catalogtest.Load(t), Options{Resolver: resolverMap{}})
		if !errors.Is(err, types.ErrRuleNotFound) {
			t.Errorf("Compile() error = %v, want ErrRuleNotFound", err)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		back := ruleJSON("expression", types.TypeNumber, "r7", refJSON("r1"))
		_, err := Compile(context.Background(), parseRule(t, top), catalogtest.Load(t), Options{Resolver: resolverMap{"r7": back}})
		if !errors.Is(err, types.ErrReferenceCycle) {
			t.Errorf("Compile() error = %v, want ErrReferenceCycle", err)
		}
	})

	t.Run("depth", func(t *testing.T) {
		chain := resolverMap{}
		for i := 0; i < types.MaxReferenceDepth+2; i++ {
			chain[types.RuleUUID(fmt.Sprintf("d%d", i))] = ruleJSON("expression", types.TypeNumber,
				fmt.Sprintf("d%d", i), refJSON(fmt.Sprintf("d%d", i+1)))
		}
		doc := conditionRule(groupJSON("AND", false, condJSON(refJSON("d0"), "greater", numJSON("1"))))
		_, err := Compile(context.Background(), parseRule(t, doc), catalogtest.Load(t), Options{Resolver: chain})
		if !errors.Is(err, types.ErrReferenceCycle) {
			t.Errorf("Compile() error = %v, want ErrReferenceCycle", err)
		}
	})
}
