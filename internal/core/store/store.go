// Package store defines the versioned rule storage contract shared by the
// local database store and the remote storage service client.
package store

import (
	"context"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Latest selects the newest version in Get.
const Latest = 0

// RuleStore persists rules as immutable, monotonically numbered versions.
//
// Create assigns version 1 (and a UUID when the rule has none). Update and
// Restore append a new latest version; nothing is ever overwritten. Lookups of
// unknown rules or versions fail with types.ErrRuleNotFound.
type RuleStore interface {
	Create(ctx context.Context, r rules.Rule) (rules.Rule, error)
	Update(ctx context.Context, r rules.Rule) (rules.Rule, error)
	Get(ctx context.Context, uuid types.RuleUUID, version int) (rules.Rule, error)
	Versions(ctx context.Context, uuid types.RuleUUID) ([]int, error)
	RuleIDs(ctx context.Context) ([]types.RuleUUID, error)
	Restore(ctx context.Context, uuid types.RuleUUID, version int) (rules.Rule, error)
}

// Resolver adapts a RuleStore to the preview engine's rule resolver.
type Resolver struct {
	Store RuleStore
}

// ResolveRule fetches the referenced version.
func (r Resolver) ResolveRule(ctx context.Context, uuid types.RuleUUID, version int) (rules.Rule, error) {
	return r.Store.Get(ctx, uuid, version)
}
