package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulekeeper/internal/types"
)

// Error mapping:
//   - malformed or invalid rules and records map to INVALID_ARGUMENT, with
//     the diagnostic list attached as a Struct detail
//   - missing referenced rules map to NOT_FOUND
//   - reference cycles map to FAILED_PRECONDITION
//   - unreachable collaborators map to UNAVAILABLE
//   - context timeouts map to DEADLINE_EXCEEDED

var invalidArgument = []error{
	types.ErrInvalidJSON,
	types.ErrInvalidRule,
	types.ErrSchemaValidationFailed,
	types.ErrUnknownField,
	types.ErrUnknownFunction,
	types.ErrUnknownOperator,
	types.ErrUnknownType,
	types.ErrIncompatibleType,
	types.ErrMalformedDynamicArgs,
	types.ErrArgumentMismatch,
	types.ErrUnsupportedOperator,
	types.ErrUnsupportedFunction,
	types.ErrCoercionFailed,
	types.ErrDivisionByZero,
	types.ErrPathTooDeep,
	types.ErrTooManyWildcards,
}

// Code classifies err.
func Code(err error) codes.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, types.ErrRuleNotFound):
		return codes.NotFound
	case errors.Is(err, types.ErrReferenceCycle):
		return codes.FailedPrecondition
	case errors.Is(err, types.ErrServiceUnavailable):
		return codes.Unavailable
	}
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return codes.InvalidArgument
		}
	}
	return codes.Internal
}

// toStatus converts a core error into a gRPC status error.
func toStatus(err error) error {
	st := status.New(Code(err), err.Error())
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		if detail, derr := structpb.NewStruct(map[string]any{"diagnostics": diagnosticList(ve.Diagnostics)}); derr == nil {
			if withDetail, derr := st.WithDetails(detail); derr == nil {
				st = withDetail
			}
		}
	}
	return st.Err()
}

// Diagnostics extracts the diagnostic list attached to a status error.
func Diagnostics(err error) types.Diagnostics {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var out types.Diagnostics
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		for _, item := range s.GetFields()["diagnostics"].GetListValue().GetValues() {
			f := item.GetStructValue().GetFields()
			out = append(out, types.Diagnostic{
				Path:    f["path"].GetStringValue(),
				Message: f["message"].GetStringValue(),
				Warning: f["warning"].GetBoolValue(),
			})
		}
	}
	return out
}

func diagnosticList(ds types.Diagnostics) []any {
	out := make([]any, len(ds))
	for i, d := range ds {
		out[i] = map[string]any{"path": d.Path, "message": d.Message, "warning": d.Warning}
	}
	return out
}
