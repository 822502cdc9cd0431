// internal/preview/engine.go
package preview

import (
	"context"
	"encoding/json"

	"github.com/solatis/rulekeeper/internal/catalog"
	"github.com/solatis/rulekeeper/internal/rules"
)

// Engine previews rules against whatever catalog is current when called.
// Safe for concurrent use if the catalog func and resolver are.
type Engine struct {
	catalog func() *catalog.Catalog
	opts    Options
}

// NewEngine creates a preview engine. catalog is called once per preview.
func NewEngine(catalog func() *catalog.Catalog, opts Options) *Engine {
	return &Engine{catalog: catalog, opts: opts}
}

// Compile compiles r against the current catalog, for evaluating one rule
// over many records.
func (e *Engine) Compile(ctx context.Context, r rules.Rule) (*Program, error) {
	return Compile(ctx, r, e.catalog(), e.opts)
}

// Preview compiles r and evaluates it against record.
func (e *Engine) Preview(ctx context.Context, r rules.Rule, record json.RawMessage) (Result, error) {
	p, err := e.Compile(ctx, r)
	if err != nil {
		return Result{}, err
	}
	return p.Evaluate(record)
}
