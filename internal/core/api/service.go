// Package api provides the rulekeeper.v1.RuleTools gRPC service: stateless
// canonicalization, checking and preview of rule JSON for editors and
// pipelines that do not link the rule core.
package api

import (
	"fmt"
	"log/slog"

	"github.com/solatis/rulekeeper/internal/core/catalogsrc"
	"github.com/solatis/rulekeeper/internal/core/logging"
	"github.com/solatis/rulekeeper/internal/preview"
)

// DefaultMaxBatchRecords bounds PreviewBatch when the caller sets no limit.
const DefaultMaxBatchRecords = 1000

// Service implements RuleToolsServer.
// Thin orchestration layer delegating to the canon, rules and preview packages.
type Service struct {
	catalog         *catalogsrc.Source
	engine          *preview.Engine
	maxBatchRecords int
	log             *slog.Logger
}

// Options configures a Service.
type Options struct {
	Preview preview.Options
	// MaxBatchRecords caps records per PreviewBatch call.
	MaxBatchRecords int
	Logger          *slog.Logger
}

// NewService creates a service reading the catalog from src on every call.
func NewService(src *catalogsrc.Source, opts Options) (*Service, error) {
	if src == nil {
		return nil, fmt.Errorf("catalog source cannot be nil")
	}
	if opts.MaxBatchRecords <= 0 {
		opts.MaxBatchRecords = DefaultMaxBatchRecords
	}
	return &Service{
		catalog:         src,
		engine:          preview.NewEngine(src.Current, opts.Preview),
		maxBatchRecords: opts.MaxBatchRecords,
		log:             logging.OrDefault(opts.Logger).With("component", "api"),
	}, nil
}
