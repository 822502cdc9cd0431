package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule storage service client.
 *
 * Endpoints, relative to the base URL:
 *   POST /rules                                   create, returns v1
 *   PUT  /rules/{uuid}                            new version
 *   GET  /rules/{uuid}/versions/{version}         fetch ("latest" allowed)
 *   GET  /rules/{uuid}/versions                   {"versions": [1, 2, ...]}
 *   GET  /rules                                   {"ruleIds": ["...", ...]}
 *   POST /rules/{uuid}/versions/{version}/restore copy into a new version
 *
 * Rule bodies in both directions are canonical rule JSON. 404 maps to
 * types.ErrRuleNotFound.
 */

// StorageClient is a store.RuleStore backed by the rule storage service.
type StorageClient struct {
	base
}

var _ store.RuleStore = (*StorageClient)(nil)

// NewStorageClient creates a client for the storage service at url.
func NewStorageClient(url string, opts Options) *StorageClient {
	return &StorageClient{base: newBase(url, opts)}
}

func rulePath(uuid types.RuleUUID) string {
	return "/rules/" + url.PathEscape(string(uuid))
}

func versionPath(uuid types.RuleUUID, version int) string {
	if version == store.Latest {
		return rulePath(uuid) + "/versions/latest"
	}
	return fmt.Sprintf("%s/versions/%d", rulePath(uuid), version)
}

// exchange sends an optional rule and decodes a rule response. Writes are
// not retried, so a lost response never appends a second version.
func (c *StorageClient) exchange(ctx context.Context, method, path string, r *rules.Rule, write bool) (rules.Rule, error) {
	var body []byte
	if r != nil {
		var err error
		if body, err = canon.Marshal(*r); err != nil {
			return rules.Rule{}, err
		}
	}
	send := c.do
	if write {
		send = c.doOnce
	}
	var raw json.RawMessage
	if err := send(ctx, method, path, body, &raw); err != nil {
		return rules.Rule{}, notFound(err)
	}
	out, err := canon.Hydrate(raw)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("%s %s response: %w", method, path, err)
	}
	return out, nil
}

func notFound(err error) error {
	if IsNotFound(err) {
		return fmt.Errorf("%w: %w", types.ErrRuleNotFound, err)
	}
	return err
}

// Create stores a new rule.
func (c *StorageClient) Create(ctx context.Context, r rules.Rule) (rules.Rule, error) {
	return c.exchange(ctx, http.MethodPost, "/rules", &r, true)
}

// Update stores r as the next version of its rule.
func (c *StorageClient) Update(ctx context.Context, r rules.Rule) (rules.Rule, error) {
	return c.exchange(ctx, http.MethodPut, rulePath(r.UUID), &r, true)
}

// Get fetches a version; store.Latest selects the newest.
func (c *StorageClient) Get(ctx context.Context, uuid types.RuleUUID, version int) (rules.Rule, error) {
	return c.exchange(ctx, http.MethodGet, versionPath(uuid, version), nil, false)
}

// Restore copies version into a new latest version.
func (c *StorageClient) Restore(ctx context.Context, uuid types.RuleUUID, version int) (rules.Rule, error) {
	return c.exchange(ctx, http.MethodPost, versionPath(uuid, version)+"/restore", nil, true)
}

// Versions lists the versions of a rule.
func (c *StorageClient) Versions(ctx context.Context, uuid types.RuleUUID) ([]int, error) {
	var resp struct {
		Versions []int `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, rulePath(uuid)+"/versions", nil, &resp); err != nil {
		return nil, notFound(err)
	}
	return resp.Versions, nil
}

// RuleIDs lists every stored rule.
func (c *StorageClient) RuleIDs(ctx context.Context) ([]types.RuleUUID, error) {
	var resp struct {
		RuleIDs []types.RuleUUID `json:"ruleIds"`
	}
	if err := c.do(ctx, http.MethodGet, "/rules", nil, &resp); err != nil {
		return nil, err
	}
	return resp.RuleIDs, nil
}
