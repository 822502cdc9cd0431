// Package storetest is a conformance suite for store.RuleStore
// implementations.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/catalog/catalogtest"
	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Run exercises s, which must start empty.
func Run(t *testing.T, s store.RuleStore) {
	ctx := context.Background()
	b := rules.NewBuilder(catalogtest.Load(t), &types.SequenceGenerator{})

	r, err := b.NewConditionRule("eligibility")
	if err != nil {
		t.Fatalf("NewConditionRule() error = %v, want nil", err)
	}
	r.UUID = ""
	r.Metadata = rules.Metadata{ID: "ELIG-1", Description: "first"}

	v1, err := s.Create(ctx, r)
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	if v1.UUID == "" || v1.Version != 1 {
		t.Fatalf("Create() = %s v%d, want a uuid at v1", v1.UUID, v1.Version)
	}

	root, err := b.AddCondition(v1.Conditions(), nil)
	if err != nil {
		t.Fatalf("AddCondition() error = %v, want nil", err)
	}
	v2, err := s.Update(ctx, v1.WithDefinition(root))
	if err != nil {
		t.Fatalf("Update() error = %v, want nil", err)
	}
	v2.Metadata.Description = "third"
	v3, err := s.Update(ctx, v2)
	if err != nil {
		t.Fatalf("Update() error = %v, want nil", err)
	}
	if v2.Version != 2 || v3.Version != 3 {
		t.Errorf("Update() versions = %d, %d, want 2, 3", v2.Version, v3.Version)
	}

	versions, err := s.Versions(ctx, v1.UUID)
	if err != nil {
		t.Fatalf("Versions() error = %v, want nil", err)
	}
	if !reflect.DeepEqual(versions, []int{1, 2, 3}) {
		t.Errorf("Versions() = %v, want [1 2 3]", versions)
	}

	v4, err := s.Restore(ctx, v1.UUID, 1)
	if err != nil {
		t.Fatalf("Restore() error = %v, want nil", err)
	}
	if v4.Version != 4 {
		t.Errorf("Restore() version = %d, want 4", v4.Version)
	}
	if got, want := definition(t, v4), definition(t, v1); got != want {
		t.Errorf("restored definition =\n%s\nwant\n%s", got, want)
	}

	latest, err := s.Get(ctx, v1.UUID, store.Latest)
	if err != nil {
		t.Fatalf("Get(latest) error = %v, want nil", err)
	}
	if latest.Version != 4 || latest.Metadata.ID != "ELIG-1" {
		t.Errorf("Get(latest) = v%d %q, want v4 ELIG-1", latest.Version, latest.Metadata.ID)
	}
	old, err := s.Get(ctx, v1.UUID, 3)
	if err != nil {
		t.Fatalf("Get(3) error = %v, want nil", err)
	}
	if old.Metadata.Description != "third" || len(old.Conditions().Children) != 2 {
		t.Errorf("Get(3) = %+v, want the third version", old)
	}

	other, err := b.NewExpressionRule("score", types.TypeNumber)
	if err != nil {
		t.Fatalf("NewExpressionRule() error = %v, want nil", err)
	}
	if _, err := s.Create(ctx, other); err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	ids, err := s.RuleIDs(ctx)
	if err != nil {
		t.Fatalf("RuleIDs() error = %v, want nil", err)
	}
	if len(ids) != 2 {
		t.Errorf("RuleIDs() = %v, want 2 ids", ids)
	}

	if _, err := s.Create(ctx, other); err == nil {
		t.Errorf("Create() of an existing uuid succeeded, want error")
	}

	ghost := other
	ghost.UUID = "missing"
	notFound := []struct {
		name string
		call func() error
	}{
		{"get unknown rule", func() error { _, err := s.Get(ctx, "missing", store.Latest); return err }},
		{"get unknown version", func() error { _, err := s.Get(ctx, v1.UUID, 99); return err }},
		{"versions of unknown rule", func() error { _, err := s.Versions(ctx, "missing"); return err }},
		{"update unknown rule", func() error { _, err := s.Update(ctx, ghost); return err }},
		{"restore unknown version", func() error { _, err := s.Restore(ctx, v1.UUID, 42); return err }},
	}
	for _, tt := range notFound {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, types.ErrRuleNotFound) {
				t.Errorf("error = %v, want ErrRuleNotFound", err)
			}
		})
	}
}

func definition(t *testing.T, r rules.Rule) string {
	t.Helper()
	data, err := canon.MarshalDefinition(r.Definition)
	if err != nil {
		t.Fatalf("MarshalDefinition() error = %v, want nil", err)
	}
	return string(data)
}
