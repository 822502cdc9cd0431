package auth

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer  abc ", want: "abc"},
		{header: "BEARER abc", want: "abc"},
		{header: "Basic abc", wantErr: ErrMalformedHeader},
		{header: "Bearer", wantErr: ErrMalformedHeader},
		{header: "Bearer   ", wantErr: ErrMalformedHeader},
		{header: "", wantErr: ErrMalformedHeader},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ParseBearer(tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseBearer() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBearer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	if _, err := NewAuthenticator(""); err == nil {
		t.Error("NewAuthenticator(\"\") error = nil, want error")
	}
	a, err := NewAuthenticator("s3cret")
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v, want nil", err)
	}
	if err := a.Authenticate("Bearer s3cret"); err != nil {
		t.Errorf("Authenticate(valid) error = %v, want nil", err)
	}
	if err := a.Authenticate("Bearer s3cret2"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Authenticate(wrong) error = %v, want ErrInvalidToken", err)
	}
	if err := a.Authenticate("s3cret"); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("Authenticate(no scheme) error = %v, want ErrMalformedHeader", err)
	}
}

func TestUnaryInterceptor(t *testing.T) {
	a, err := NewAuthenticator("s3cret")
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v, want nil", err)
	}
	intercept := a.UnaryInterceptor()
	ok := func(context.Context, any) (any, error) { return "ok", nil }
	tools := &grpc.UnaryServerInfo{FullMethod: "/rulekeeper.v1.RuleTools/Check"}

	tests := []struct {
		name string
		ctx  context.Context
		info *grpc.UnaryServerInfo
		want codes.Code
	}{
		{name: "valid token", ctx: withAuth("Bearer s3cret"), info: tools, want: codes.OK},
		{name: "wrong token", ctx: withAuth("Bearer nope"), info: tools, want: codes.Unauthenticated},
		{name: "no header", ctx: metadata.NewIncomingContext(context.Background(), metadata.MD{}), info: tools, want: codes.Unauthenticated},
		{name: "no metadata", ctx: context.Background(), info: tools, want: codes.Unauthenticated},
		{
			name: "health check exempt",
			ctx:  context.Background(),
			info: &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
			want: codes.OK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := intercept(tt.ctx, nil, tt.info, ok)
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %v, want %v (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestTokenCredentials(t *testing.T) {
	md, err := TokenCredentials{Token: "abc"}.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("GetRequestMetadata() error = %v, want nil", err)
	}
	if md["authorization"] != "Bearer abc" {
		t.Errorf("authorization = %q, want Bearer abc", md["authorization"])
	}
	if !(TokenCredentials{}).RequireTransportSecurity() {
		t.Error("RequireTransportSecurity() = false, want true by default")
	}
}

func withAuth(header string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", header))
}
