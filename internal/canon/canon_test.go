// internal/canon/canon_test.go
package canon_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/catalog/catalogtest"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

const goldenCondition = `{"structure":"condition","returnType":"boolean","ruleType":"eligibility","uuId":"r1","version":3,` +
	`"metadata":{"id":"ELIG-1","description":"adult VIPs"},` +
	`"definition":{"name":"Root","conjunction":"AND","not":false,"conditions":[` +
	`{"name":"Condition 1","left":{"type":"field","returnType":"number","field":"customer.age"},"operator":"between",` +
	`"right":[{"type":"value","returnType":"number","value":18},{"type":"value","returnType":"number","value":65.5}]},` +
	`{"name":"VIP check","conjunction":"OR","not":true,"conditions":[` +
	`{"name":"Condition 2.1","left":{"type":"field","returnType":"boolean","field":"customer.vip"},"operator":"is_null","right":null},` +
	`{"name":"Condition 2.2","left":{"type":"function","returnType":"number","function":{"name":"TEXT.LENGTH","args":[{"name":"value","value":{"type":"field","returnType":"text","field":"customer.name"}}]}},` +
	`"operator":"greater","right":{"type":"ruleRef","returnType":"number","id":"MIN-LEN","uuId":"r7","version":2}}]}]}}`

const goldenCase = `{"structure":"case","returnType":"text","ruleType":"tier","uuId":"r2","version":1,` +
	`"metadata":{"id":"","description":""},` +
	`"definition":{"whenClauses":[{"when":{"name":"Root","conjunction":"AND","not":false,"conditions":[` +
	`{"name":"Condition 1","left":{"type":"field","returnType":"number","field":"order.total"},"operator":"greater","right":{"type":"value","returnType":"number","value":100}}]},` +
	`"then":{"type":"function","returnType":"text","function":{"name":"TEXT.CONCAT","args":[{"type":"value","returnType":"text","value":"<gold>"},{"type":"field","returnType":"text","field":"customer.name"}]}},` +
	`"resultName":"Result 1"}],` +
	`"elseClause":{"type":"expressionGroup","returnType":"text","expressions":[{"type":"value","returnType":"text","value":"std"},{"type":"value","returnType":"text","value":"-"}],"operators":["||"]},` +
	`"elseResultName":"Default"}}`

func TestParse_GoldenRoundTrip(t *testing.T) {
	for _, golden := range []string{goldenCondition, goldenCase} {
		r, err := canon.Parse([]byte(golden))
		if err != nil {
			t.Fatalf("Parse() error = %v, want nil", err)
		}
		got, err := canon.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal() error = %v, want nil", err)
		}
		if string(got) != golden {
			t.Errorf("Marshal(Parse(x)) =\n%s\nwant\n%s", got, golden)
		}
		if ds := rules.Check(r, catalogtest.Load(t)); len(ds.Errors()) != 0 {
			t.Errorf("Check() = %v, want no errors", ds)
		}
	}
}

func TestParse_Model(t *testing.T) {
	r, err := canon.Parse([]byte(goldenCondition))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if r.UUID != "r1" || r.Version != 3 || r.Metadata.ID != "ELIG-1" {
		t.Errorf("identity = %q v%d %q, want r1 v3 ELIG-1", r.UUID, r.Version, r.Metadata.ID)
	}
	root := r.Conditions()
	c, err := root.ConditionAt(rules.Path{0})
	if err != nil {
		t.Fatalf("ConditionAt() error = %v, want nil", err)
	}
	if len(c.Right) != 2 {
		t.Fatalf("len(Right) = %d, want 2", len(c.Right))
	}
	if v := c.Right[1].(rules.Value).Value; v != json.Number("65.5") {
		t.Errorf("literal = %#v, want json.Number 65.5", v)
	}

	g, err := root.GroupAt(rules.Path{1})
	if err != nil {
		t.Fatalf("GroupAt() error = %v, want nil", err)
	}
	if g.Conjunction != types.ConjunctionOr || !g.Not {
		t.Errorf("group = %v not=%v, want OR not=true", g.Conjunction, g.Not)
	}
	unary, _ := root.ConditionAt(rules.Path{1, 0})
	if unary.Right != nil {
		t.Errorf("unary Right = %v, want nil", unary.Right)
	}
	call := rules.Unwrap(mustCondition(t, root, rules.Path{1, 1}).Left).(rules.FunctionCall)
	if _, ok := call.Args.(rules.FixedArgs); !ok {
		t.Errorf("Args = %T, want FixedArgs", call.Args)
	}
}

func mustCondition(t *testing.T, g rules.ConditionGroup, p rules.Path) rules.Condition {
	t.Helper()
	c, err := g.ConditionAt(p)
	if err != nil {
		t.Fatalf("ConditionAt(%v) error = %v, want nil", p, err)
	}
	return c
}

func TestMarshalIndent(t *testing.T) {
	r, err := canon.Parse([]byte(goldenCase))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	out, err := canon.MarshalIndent(r, "  ")
	if err != nil {
		t.Fatalf("MarshalIndent() error = %v, want nil", err)
	}
	if !bytes.HasPrefix(out, []byte("{\n  \"structure\": \"case\",\n  \"returnType\": \"text\",")) {
		t.Errorf("MarshalIndent() = %s, want indented canonical key order", out)
	}
	if !bytes.Contains(out, []byte(`"<gold>"`)) {
		t.Errorf("MarshalIndent() escaped HTML characters")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, out); err != nil {
		t.Fatalf("Compact() error = %v, want nil", err)
	}
	if compact.String() != goldenCase {
		t.Errorf("compacted indent output differs from compact form")
	}
}

func TestParse_SyntaxError(t *testing.T) {
	doc := "{\n  \"structure\": \"condition\",\n  \"definition\": {,}\n}"
	_, err := canon.Parse([]byte(doc))
	if !errors.Is(err, types.ErrInvalidJSON) {
		t.Fatalf("Parse() error = %v, want ErrInvalidJSON", err)
	}
	var se *canon.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("Parse() error = %T, want *canon.SyntaxError", err)
	}
	if se.Line != 3 {
		t.Errorf("Line = %d, want 3", se.Line)
	}
}

func TestParse_InvalidShape(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown structure", `{"structure":"table","definition":{}}`},
		{"missing definition", `{"structure":"condition"}`},
		{"group without conditions", `{"structure":"condition","definition":{"name":"Root"}}`},
		{"unknown expression type", `{"structure":"expression","returnType":"number","definition":{"type":"lambda"}}`},
		{"condition without left", `{"structure":"condition","definition":{"conditions":[{"operator":"is_null"}]}}`},
		{"case without else", `{"structure":"case","definition":{"whenClauses":[]}}`},
		{"wrong field type", `{"structure":"condition","definition":{"conditions":[{"name":5}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := canon.Parse([]byte(tt.doc)); !errors.Is(err, types.ErrInvalidRule) {
				t.Errorf("Parse() error = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestParse_DeepNestingRejected(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"structure":"condition","definition":`)
	depth := types.MaxNestingDepth + 2
	for i := 0; i < depth; i++ {
		sb.WriteString(`{"conditions":[`)
	}
	for i := 0; i < depth; i++ {
		sb.WriteString(`]}`)
	}
	sb.WriteString(`}`)
	if _, err := canon.Parse([]byte(sb.String())); !errors.Is(err, types.ErrInvalidRule) {
		t.Errorf("Parse() error = %v, want ErrInvalidRule", err)
	}
}

func TestHydrate_PinsCustomNames(t *testing.T) {
	r, err := canon.Hydrate([]byte(goldenCondition))
	if err != nil {
		t.Fatalf("Hydrate() error = %v, want nil", err)
	}
	root := r.Conditions()
	g, _ := root.GroupAt(rules.Path{1})
	if !g.NamePinned {
		t.Errorf("%q not pinned", g.Name)
	}
	if c := mustCondition(t, root, rules.Path{0}); c.NamePinned {
		t.Errorf("auto name %q pinned", c.Name)
	}

	stripped := canon.Strip(r)
	if g, _ := stripped.Conditions().GroupAt(rules.Path{1}); g.NamePinned {
		t.Errorf("Strip() kept pin flag")
	}

	// An auto name left at another position by a reorder is not a user edit.
	moved := strings.Replace(goldenCondition, `"name":"Condition 1"`, `"name":"Condition 3"`, 1)
	r, err = canon.Hydrate([]byte(moved))
	if err != nil {
		t.Fatalf("Hydrate(moved) error = %v, want nil", err)
	}
	if c := mustCondition(t, r.Conditions(), rules.Path{0}); c.Name != "Condition 3" || c.NamePinned {
		t.Errorf("condition = %q pinned=%v, want unpinned Condition 3", c.Name, c.NamePinned)
	}
}

func TestStripRaw(t *testing.T) {
	legacy := `{"structure":"condition","returnType":"boolean","ruleType":"x","uuId":"r1","version":1,` +
		`"metadata":{"id":"M","description":"","isExpanded":true},` +
		`"definition":{"id":"g-1","name":"Root","conjunction":"AND","not":false,"isCollapsed":false,"conditions":[` +
		`{"id":"c-1","name":"Condition 1","editingName":true,"left":{"type":"field","returnType":"number","field":"score","leftExpanded":true},` +
		`"operator":"equal","right":{"type":"value","returnType":"number","value":1e3}}]}}`
	want := `{"structure":"condition","returnType":"boolean","ruleType":"x","uuId":"r1","version":1,` +
		`"metadata":{"id":"M","description":""},` +
		`"definition":{"name":"Root","conjunction":"AND","not":false,"conditions":[` +
		`{"id":"c-1","name":"Condition 1","left":{"type":"field","returnType":"number","field":"score"},` +
		`"operator":"equal","right":{"type":"value","returnType":"number","value":1e3}}]}}`

	got, err := canon.StripRaw([]byte(legacy))
	if err != nil {
		t.Fatalf("StripRaw() error = %v, want nil", err)
	}
	if string(got) != want {
		t.Errorf("StripRaw() =\n%s\nwant\n%s", got, want)
	}

	before, err := canon.Parse([]byte(legacy))
	if err != nil {
		t.Fatalf("Parse(legacy) error = %v, want nil", err)
	}
	after, err := canon.Parse(got)
	if err != nil {
		t.Fatalf("Parse(stripped) error = %v, want nil", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("stripping changed the parsed rule")
	}

	if _, err := canon.StripRaw([]byte(`{"a":1} {"b":2}`)); !errors.Is(err, types.ErrInvalidJSON) {
		t.Errorf("StripRaw(two documents) error = %v, want ErrInvalidJSON", err)
	}
	if _, err := canon.StripRaw([]byte(`{"a":`)); !errors.Is(err, types.ErrInvalidJSON) {
		t.Errorf("StripRaw(truncated) error = %v, want ErrInvalidJSON", err)
	}
}

func TestStripRaw_RemovesEveryPresentationKey(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	keys := []string{"isExpanded", "isCollapsed", "editingOperator", "rightExpanded", "editing"}
	properties.Property("no presentation key survives", prop.ForAll(
		func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			doc := randomRaw(rng, keys, 0)
			out, err := canon.StripRaw(doc)
			if err != nil {
				return false
			}
			for _, k := range keys {
				if bytes.Contains(out, []byte(`"`+k+`"`)) {
					return false
				}
			}
			return json.Valid(out)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// randomRaw builds nested objects sprinkled with presentation keys.
func randomRaw(rng *rand.Rand, keys []string, depth int) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"name":"n"`)
	for _, k := range keys {
		if rng.Intn(2) == 0 {
			buf.WriteString(`,"` + k + `":true`)
		}
	}
	if depth < 3 {
		buf.WriteString(`,"conditions":[`)
		n := rng.Intn(3)
		for i := 0; i < n; i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(randomRaw(rng, keys, depth+1))
		}
		buf.WriteString(`]`)
	}
	buf.WriteString(`}`)
	return buf.Bytes()
}
