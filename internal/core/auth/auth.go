// Package auth provides shared-token authentication for the gRPC rule tools
// service.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// healthPrefix names methods reachable without a token.
const healthPrefix = "/grpc.health.v1.Health/"

// Authenticator checks bearer tokens against one configured token.
// Tokens are compared as HMAC digests under a per-process random key, so
// comparison time depends on neither token's length nor content.
type Authenticator struct {
	key    []byte
	digest []byte
}

// NewAuthenticator creates an authenticator accepting token.
func NewAuthenticator(token string) (*Authenticator, error) {
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate hmac key: %w", err)
	}
	return &Authenticator{key: key, digest: ComputeHMAC(key, token)}, nil
}

// Authenticate validates an "authorization" metadata value.
func (a *Authenticator) Authenticate(header string) error {
	token, err := ParseBearer(header)
	if err != nil {
		return err
	}
	if !VerifyHMAC(a.digest, ComputeHMAC(a.key, token)) {
		return ErrInvalidToken
	}
	return nil
}

// UnaryInterceptor returns a gRPC interceptor that authenticates requests.
// Health checks pass through.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingToken.Error())
		}
		if err := a.Authenticate(values[0]); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}

// TokenCredentials attaches a bearer token to every call, for clients.
type TokenCredentials struct {
	Token string
	// Insecure allows sending the token over plaintext connections.
	Insecure bool
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c TokenCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + c.Token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c TokenCredentials) RequireTransportSecurity() bool {
	return !c.Insecure
}
