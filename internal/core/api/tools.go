package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/solatis/rulekeeper/internal/canon"
	"github.com/solatis/rulekeeper/internal/preview"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Canonicalize parses rule JSON, drops presentation state and returns the
// canonical persisted bytes. Structurally invalid rules are rejected.
func (s *Service) Canonicalize(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	r, err := canon.Hydrate(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := r.Validate(); err != nil {
		return nil, toStatus(err)
	}
	out, err := canon.Marshal(r)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(out), nil
}

// Check runs the catalog checks and reports every diagnostic. An invalid rule
// is a successful call with valid=false; only unparseable input fails.
func (s *Service) Check(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	r, err := canon.Parse(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	ds := rules.Check(r, s.catalog.Current())
	out, err := structpb.NewStruct(map[string]any{
		"valid":       len(ds.Errors()) == 0,
		"errors":      len(ds.Errors()),
		"warnings":    len(ds.Warnings()),
		"diagnostics": diagnosticList(ds),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode check report: %v", err)
	}
	return out, nil
}

// Preview evaluates {"rule": <rule>, "record": <record>}. The rule may be
// given as an object or as a JSON string. A missing record is an empty
// object.
func (s *Service) Preview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := ruleField(req)
	if err != nil {
		return nil, toStatus(err)
	}
	record := json.RawMessage(`{}`)
	if v, ok := req.GetFields()["record"]; ok {
		if record, err = v.MarshalJSON(); err != nil {
			return nil, toStatus(fmt.Errorf("%w: record: %v", types.ErrInvalidJSON, err))
		}
	}

	res, err := s.engine.Preview(ctx, r, record)
	if err != nil {
		return nil, toStatus(err)
	}
	return resultStruct(res)
}

// PreviewBatch evaluates one rule against {"records": [...]}. The rule is
// compiled once; a record that fails evaluation gets an "error" entry and
// does not fail the batch.
func (s *Service) PreviewBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := ruleField(req)
	if err != nil {
		return nil, toStatus(err)
	}
	records := req.GetFields()["records"].GetListValue().GetValues()
	if len(records) > s.maxBatchRecords {
		return nil, status.Errorf(codes.InvalidArgument, "batch size exceeds maximum of %d records", s.maxBatchRecords)
	}

	prog, err := s.engine.Compile(ctx, r)
	if err != nil {
		return nil, toStatus(err)
	}

	results := make([]any, len(records))
	matched, failed := 0, 0
	for i, v := range records {
		if err := ctx.Err(); err != nil {
			return nil, toStatus(err)
		}
		results[i], err = evaluateRecord(prog, v)
		if err != nil {
			failed++
			results[i] = map[string]any{"error": err.Error()}
			continue
		}
		if results[i].(map[string]any)["matched"] == true {
			matched++
		}
	}
	if failed > 0 {
		s.log.Debug("preview batch had record errors", "records", len(records), "failed", failed)
	}

	out, err := structpb.NewStruct(map[string]any{
		"results": results,
		"matched": matched,
		"errors":  failed,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode batch result: %v", err)
	}
	return out, nil
}

func evaluateRecord(prog *preview.Program, v *structpb.Value) (map[string]any, error) {
	record, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: record: %v", types.ErrInvalidJSON, err)
	}
	res, err := prog.Evaluate(record)
	if err != nil {
		return nil, err
	}
	return resultMap(res), nil
}

// ruleField decodes req.rule from an object or a JSON string.
func ruleField(req *structpb.Struct) (rules.Rule, error) {
	v, ok := req.GetFields()["rule"]
	if !ok {
		return rules.Rule{}, fmt.Errorf("%w: missing rule", types.ErrInvalidRule)
	}
	var data []byte
	if str, isString := v.GetKind().(*structpb.Value_StringValue); isString {
		data = []byte(str.StringValue)
	} else {
		var err error
		if data, err = v.MarshalJSON(); err != nil {
			return rules.Rule{}, fmt.Errorf("%w: rule: %v", types.ErrInvalidJSON, err)
		}
	}
	return canon.Parse(data)
}

func resultMap(res preview.Result) map[string]any {
	m := map[string]any{
		"value":   plain(res.Value),
		"clause":  res.Clause,
		"matched": res.Matched(),
	}
	if res.ResultName != "" {
		m["resultName"] = res.ResultName
	}
	return m
}

func resultStruct(res preview.Result) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(resultMap(res))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode preview result: %v", err)
	}
	return out, nil
}

// plain converts an evaluated value into something structpb accepts.
func plain(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case nil, bool, float64, string:
		return x
	}
	if _, err := structpb.NewValue(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}
