package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/catalog"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// CatalogClient fetches the field/function catalog.
type CatalogClient struct {
	base
}

// NewCatalogClient creates a client for the catalog endpoint at url.
func NewCatalogClient(url string, opts Options) *CatalogClient {
	return &CatalogClient{base: newBase(url, opts)}
}

// Fetch downloads and loads the current catalog.
func (c *CatalogClient) Fetch(ctx context.Context) (*catalog.Catalog, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "", nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	cat, err := catalog.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// ValidationClient checks rules against the validation service's schema.
type ValidationClient struct {
	base
}

// NewValidationClient creates a client for the validation endpoint at url.
func NewValidationClient(url string, opts Options) *ValidationClient {
	return &ValidationClient{base: newBase(url, opts)}
}

// Report is the validation service's verdict.
type Report struct {
	Valid       bool
	Diagnostics types.Diagnostics
	// Schema is the optional schema echoed by the service.
	Schema json.RawMessage
}

type validationResponse struct {
	Valid  bool `json:"valid"`
	Errors []struct {
		Path    string `json:"path"`
		Message string `json:"message"`
	} `json:"errors"`
	Schema json.RawMessage `json:"schema"`
}

// Validate posts r. A rejected rule returns the report and a
// *types.ValidationError wrapping types.ErrSchemaValidationFailed that
// carries every reported problem.
func (c *ValidationClient) Validate(ctx context.Context, r rules.Rule) (Report, error) {
	body, err := canon.Marshal(r)
	if err != nil {
		return Report{}, err
	}
	var resp validationResponse
	if err := c.do(ctx, http.MethodPost, "", body, &resp); err != nil {
		return Report{}, fmt.Errorf("validate rule: %w", err)
	}

	rep := Report{Valid: resp.Valid, Schema: resp.Schema}
	for _, e := range resp.Errors {
		rep.Diagnostics.Add(e.Path, "%s", e.Message)
	}
	if !rep.Valid {
		if len(rep.Diagnostics) == 0 {
			rep.Diagnostics.Add("", "rejected without details")
		}
		return rep, rep.Diagnostics.Err(types.ErrSchemaValidationFailed)
	}
	return rep, nil
}

// SQLClient turns rules into SQL through the SQL-generation service.
type SQLClient struct {
	base
}

// NewSQLClient creates a client for the SQL-generation endpoint at url.
func NewSQLClient(url string, opts Options) *SQLClient {
	return &SQLClient{base: newBase(url, opts)}
}

type sqlResponse struct {
	SQL    string   `json:"sql"`
	Errors []string `json:"errors"`
}

// Generate posts r and returns the generated SQL. Reported errors come back
// as a *types.ValidationError wrapping types.ErrSQLGenerationFailed.
func (c *SQLClient) Generate(ctx context.Context, r rules.Rule) (string, error) {
	body, err := canon.Marshal(r)
	if err != nil {
		return "", err
	}
	var resp sqlResponse
	if err := c.do(ctx, http.MethodPost, "", body, &resp); err != nil {
		return "", fmt.Errorf("generate SQL: %w", err)
	}
	if len(resp.Errors) > 0 {
		var ds types.Diagnostics
		for _, e := range resp.Errors {
			ds.Add("", "%s", e)
		}
		return "", ds.Err(types.ErrSQLGenerationFailed)
	}
	return resp.SQL, nil
}
