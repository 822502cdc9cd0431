// internal/canon/roundtrip_test.go
package canon_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/catalog/catalogtest"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/rules/rulestest"
	"github.com/solatis/rulekeeper/internal/types"
)

func TestRoundTrip_PersistedFormIsFixedPoint(t *testing.T) {
	cat := catalogtest.Load(t)
	b := rules.NewBuilder(cat, &types.SequenceGenerator{})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Marshal(Strip(Hydrate(Marshal(x)))) == Marshal(x)", prop.ForAll(
		func(seed int64) (bool, error) {
			x, err := rulestest.Random(b, rand.New(rand.NewSource(seed)))
			if err != nil {
				return false, err
			}
			first, err := canon.Marshal(x)
			if err != nil {
				return false, err
			}
			hydrated, err := canon.Hydrate(first)
			if err != nil {
				return false, err
			}
			second, err := canon.Marshal(canon.Strip(hydrated))
			if err != nil {
				return false, err
			}
			return bytes.Equal(first, second), nil
		},
		gen.Int64(),
	))

	properties.Property("generated rules check clean", prop.ForAll(
		func(seed int64) bool {
			x, err := rulestest.Random(b, rand.New(rand.NewSource(seed)))
			if err != nil {
				return false
			}
			return len(b.Check(x).Errors()) == 0
		},
		gen.Int64(),
	))

	properties.Property("StripRaw is the identity on persisted form", prop.ForAll(
		func(seed int64) (bool, error) {
			x, err := rulestest.Random(b, rand.New(rand.NewSource(seed)))
			if err != nil {
				return false, err
			}
			data, err := canon.Marshal(x)
			if err != nil {
				return false, err
			}
			out, err := canon.StripRaw(data)
			if err != nil {
				return false, err
			}
			return bytes.Equal(data, out), nil
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestHydrate_ParsedRulePassesCheck(t *testing.T) {
	cat := catalogtest.Load(t)
	b := rules.NewBuilder(cat, &types.SequenceGenerator{})
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		x, err := rulestest.Random(b, rng)
		if err != nil {
			t.Fatalf("Random() error = %v, want nil", err)
		}
		data, err := canon.Marshal(x)
		if err != nil {
			t.Fatalf("Marshal() error = %v, want nil", err)
		}
		r, err := canon.Hydrate(data)
		if err != nil {
			t.Fatalf("Hydrate(%s) error = %v, want nil", data, err)
		}
		if ds := b.Check(r); len(ds.Errors()) != 0 {
			t.Fatalf("Check(Hydrate(%s)) = %v, want no errors", data, ds)
		}
	}
}
