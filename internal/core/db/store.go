package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/core/logging"
	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Local versioned rule store.
 *
 * Tables:
 *   rules          one row per rule uuid, tracking the latest version
 *   rule_versions  one immutable row per (uuid, version) holding the
 *                  canonical rule JSON
 *
 * Appending a version runs in a transaction that reads latest_version,
 * inserts latest+1 and advances latest_version only if it is unchanged. A
 * concurrent writer loses on the (uuid, version) primary key or on the
 * guarded update, so versions stay gap-free and monotonic.
 */

// Store implements store.RuleStore on SQLite or PostgreSQL.
type Store struct {
	db  *sqlx.DB
	q   *Queries
	ids types.IDGenerator
	log *slog.Logger
	now func() time.Time
}

var _ store.RuleStore = (*Store)(nil)

// NewStore wraps a migrated database. ids mints uuids for rules created
// without one; nil uses UUIDv7.
func NewStore(db *sqlx.DB, ids types.IDGenerator, log *slog.Logger) (*Store, error) {
	q, err := LoadQueries()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = types.UUIDGenerator{}
	}
	return &Store{db: db, q: q, ids: ids, log: logging.OrDefault(log), now: time.Now}, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Create stores r as version 1.
func (s *Store) Create(ctx context.Context, r rules.Rule) (rules.Rule, error) {
	if r.UUID == "" {
		r.UUID = s.ids.NewRuleUUID()
	}
	r.Version = 1
	body, err := encode(r)
	if err != nil {
		return rules.Rule{}, err
	}

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := s.timestamp()
		if _, err := s.q.Exec(ctx, tx, "insert-rule", r.UUID, r.Metadata.ID, r.RuleType, r.Structure, now, now); err != nil {
			return fmt.Errorf("insert rule %s: %w", r.UUID, err)
		}
		if _, err := s.q.Exec(ctx, tx, "insert-rule-version", r.UUID, 1, body, now); err != nil {
			return fmt.Errorf("insert rule %s v1: %w", r.UUID, err)
		}
		return nil
	})
	if err != nil {
		return rules.Rule{}, err
	}
	s.log.Debug("rule created", "uuid", r.UUID, "rule_id", r.Metadata.ID)
	return r, nil
}

// Update stores r as the next version of its rule.
func (s *Store) Update(ctx context.Context, r rules.Rule) (rules.Rule, error) {
	var out rules.Rule
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		latest, err := s.latest(ctx, tx, r.UUID)
		if err != nil {
			return err
		}
		out, err = s.append(ctx, tx, r, latest)
		return err
	})
	if err != nil {
		return rules.Rule{}, err
	}
	return out, nil
}

// Restore copies version into a new latest version.
func (s *Store) Restore(ctx context.Context, uuid types.RuleUUID, version int) (rules.Rule, error) {
	var out rules.Rule
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		latest, err := s.latest(ctx, tx, uuid)
		if err != nil {
			return err
		}
		old, err := s.version(ctx, tx, uuid, version)
		if err != nil {
			return err
		}
		out, err = s.append(ctx, tx, old, latest)
		return err
	})
	if err != nil {
		return rules.Rule{}, err
	}
	s.log.Info("rule version restored", "uuid", uuid, "from", version, "to", out.Version)
	return out, nil
}

// Get returns a version of a rule; store.Latest selects the newest.
func (s *Store) Get(ctx context.Context, uuid types.RuleUUID, version int) (rules.Rule, error) {
	if version == store.Latest {
		latest, err := s.latest(ctx, s.db, uuid)
		if err != nil {
			return rules.Rule{}, err
		}
		version = latest
	}
	return s.version(ctx, s.db, uuid, version)
}

// Versions lists the stored versions of a rule in ascending order.
func (s *Store) Versions(ctx context.Context, uuid types.RuleUUID) ([]int, error) {
	var versions []int
	if err := s.q.Select(ctx, s.db, "list-versions", &versions, uuid); err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", uuid, err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrRuleNotFound, uuid)
	}
	return versions, nil
}

// RuleIDs lists every stored rule uuid, oldest first.
func (s *Store) RuleIDs(ctx context.Context) ([]types.RuleUUID, error) {
	var ids []types.RuleUUID
	if err := s.q.Select(ctx, s.db, "list-rule-ids", &ids); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return ids, nil
}

// append writes r as version latest+1.
func (s *Store) append(ctx context.Context, tx *sqlx.Tx, r rules.Rule, latest int) (rules.Rule, error) {
	r.Version = latest + 1
	body, err := encode(r)
	if err != nil {
		return rules.Rule{}, err
	}
	now := s.timestamp()
	if _, err := s.q.Exec(ctx, tx, "insert-rule-version", r.UUID, r.Version, body, now); err != nil {
		return rules.Rule{}, fmt.Errorf("insert rule %s v%d: %w", r.UUID, r.Version, err)
	}
	res, err := s.q.Exec(ctx, tx, "set-latest-version", r.Version, r.Metadata.ID, r.RuleType, now, r.UUID, latest)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("advance rule %s: %w", r.UUID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return rules.Rule{}, fmt.Errorf("advance rule %s: concurrent update of v%d", r.UUID, latest)
	}
	s.log.Debug("rule version stored", "uuid", r.UUID, "version", r.Version)
	return r, nil
}

func (s *Store) latest(ctx context.Context, ext sqlx.ExtContext, uuid types.RuleUUID) (int, error) {
	var latest int
	err := s.q.Get(ctx, ext, "get-latest-version", &latest, uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", types.ErrRuleNotFound, uuid)
	}
	if err != nil {
		return 0, fmt.Errorf("read rule %s: %w", uuid, err)
	}
	return latest, nil
}

func (s *Store) version(ctx context.Context, ext sqlx.ExtContext, uuid types.RuleUUID, version int) (rules.Rule, error) {
	var body string
	err := s.q.Get(ctx, ext, "get-rule-version", &body, uuid, version)
	if errors.Is(err, sql.ErrNoRows) {
		return rules.Rule{}, fmt.Errorf("%w: %s v%d", types.ErrRuleNotFound, uuid, version)
	}
	if err != nil {
		return rules.Rule{}, fmt.Errorf("read rule %s v%d: %w", uuid, version, err)
	}
	r, err := canon.Hydrate([]byte(body))
	if err != nil {
		return rules.Rule{}, fmt.Errorf("decode rule %s v%d: %w", uuid, version, err)
	}
	return r, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// encode validates r and renders its canonical JSON.
func encode(r rules.Rule) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	data, err := canon.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
