package types

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// NodeID addresses a node of a rule tree from the editing layer.
// Ephemeral: minted on hydrate and construction, never persisted.
type NodeID string

// RuleUUID is the persisted identity of a rule across versions.
type RuleUUID string

// IDGenerator mints node and rule identities.
// Injected so tests can use deterministic sequences.
type IDGenerator interface {
	NewNodeID() NodeID
	NewRuleUUID() RuleUUID
}

// UUIDGenerator mints UUIDv7 identities.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
type UUIDGenerator struct{}

// NewNodeID returns a fresh UUIDv7 node id.
func (UUIDGenerator) NewNodeID() NodeID {
	return NodeID(uuid.Must(uuid.NewV7()).String())
}

// NewRuleUUID returns a fresh UUIDv7 rule uuid.
func (UUIDGenerator) NewRuleUUID() RuleUUID {
	return RuleUUID(uuid.Must(uuid.NewV7()).String())
}

// SequenceGenerator mints predictable ids ("n1", "n2", ... and "r1", ...).
// Safe for concurrent use.
type SequenceGenerator struct {
	n atomic.Int64
}

// NewNodeID returns the next node id in sequence.
func (g *SequenceGenerator) NewNodeID() NodeID {
	return NodeID(fmt.Sprintf("n%d", g.n.Add(1)))
}

// NewRuleUUID returns the next rule uuid in sequence.
func (g *SequenceGenerator) NewRuleUUID() RuleUUID {
	return RuleUUID(fmt.Sprintf("r%d", g.n.Add(1)))
}

// ParseRuleUUID validates and converts a string to RuleUUID.
// Rejects malformed UUIDs to prevent invalid ids from reaching a store.
func ParseRuleUUID(s string) (RuleUUID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleUUID(s), nil
}
