package server

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/solatis/rulekeeper/internal/catalog/catalogtest"
	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/auth"
	"github.com/solatis/rulekeeper/internal/core/catalogsrc"
	"github.com/solatis/rulekeeper/internal/core/config"
)

const rule = `{"structure":"condition","returnType":"boolean","ruleType":"test","uuId":"r1","version":1,` +
	`"metadata":{"id":"","description":""},` +
	`"definition":{"name":"Root","conjunction":"AND","not":false,"conditions":[` +
	`{"name":"Condition 1","left":{"type":"field","returnType":"number","field":"score"},"operator":"greater",` +
	`"right":{"type":"value","returnType":"number","value":10}}]}}`

// startServer serves on an in-memory listener and returns a connection to it.
func startServer(t *testing.T, authenticator *auth.Authenticator, dialOpts ...grpc.DialOption) (*GRPCServer, *grpc.ClientConn) {
	t.Helper()
	svc, err := api.NewService(catalogsrc.Static(catalogtest.Load(t)), api.Options{})
	if err != nil {
		t.Fatalf("NewService() error = %v, want nil", err)
	}
	srv, err := NewGRPCServer(config.Default().Server, svc, authenticator, nil)
	if err != nil {
		t.Fatalf("NewGRPCServer() error = %v, want nil", err)
	}

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	opts := append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, dialOpts...)
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func TestNewGRPCServer_RequiresService(t *testing.T) {
	if _, err := NewGRPCServer(config.Default().Server, nil, nil, nil); err == nil {
		t.Error("NewGRPCServer(nil service) error = nil, want error")
	}
}

func TestGRPCServer_RuleTools(t *testing.T) {
	srv, conn := startServer(t, nil)
	ctx := context.Background()
	client := api.NewRuleToolsClient(conn)

	out, err := client.Canonicalize(ctx, wrapperspb.Bytes([]byte(rule)))
	if err != nil {
		t.Fatalf("Canonicalize() error = %v, want nil", err)
	}
	if string(out.GetValue()) != rule {
		t.Errorf("Canonicalize() = %s, want input unchanged", out.GetValue())
	}

	_, err = client.Check(ctx, wrapperspb.Bytes([]byte(`{`)))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Check(garbage) code = %v, want InvalidArgument", status.Code(err))
	}

	m := srv.Metrics()
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(api.MethodCanonicalize, "OK")); got != 1 {
		t.Errorf("requests_total{Canonicalize,OK} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(api.MethodCheck, "InvalidArgument")); got != 1 {
		t.Errorf("requests_total{Check,InvalidArgument} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("requests_in_flight = %v, want 0", got)
	}
}

func TestGRPCServer_Health(t *testing.T) {
	_, conn := startServer(t, nil)
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		t.Fatalf("Health.Check() error = %v, want nil", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}
}

func TestGRPCServer_Auth(t *testing.T) {
	a, err := auth.NewAuthenticator("s3cret")
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v, want nil", err)
	}
	ctx := context.Background()

	_, anon := startServer(t, a)
	_, err = api.NewRuleToolsClient(anon).Canonicalize(ctx, wrapperspb.Bytes([]byte(rule)))
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("Canonicalize(no token) code = %v, want Unauthenticated", status.Code(err))
	}
	if _, err := grpc_health_v1.NewHealthClient(anon).Check(ctx, &grpc_health_v1.HealthCheckRequest{}); err != nil {
		t.Errorf("Health.Check(no token) error = %v, want nil", err)
	}

	_, authed := startServer(t, a, grpc.WithPerRPCCredentials(auth.TokenCredentials{Token: "s3cret", Insecure: true}))
	if _, err := api.NewRuleToolsClient(authed).Canonicalize(ctx, wrapperspb.Bytes([]byte(rule))); err != nil {
		t.Errorf("Canonicalize(token) error = %v, want nil", err)
	}
}

func TestMetricsHandler(t *testing.T) {
	srv, conn := startServer(t, nil)
	if _, err := api.NewRuleToolsClient(conn).Canonicalize(context.Background(), wrapperspb.Bytes([]byte(rule))); err != nil {
		t.Fatalf("Canonicalize() error = %v, want nil", err)
	}

	rec := httptest.NewRecorder()
	srv.Metrics().Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"rulekeeper_grpc_requests_total", "rulekeeper_grpc_request_duration_seconds", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("/metrics missing %s", name)
		}
	}
}

func TestTimeoutInterceptor(t *testing.T) {
	intercept := timeoutInterceptor(50 * time.Millisecond)
	_, err := intercept(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > 50*time.Millisecond {
			t.Errorf("handler deadline = %v, %v, want within 50ms", deadline, ok)
		}
		return nil, nil
	})
	if err != nil {
		t.Errorf("interceptor error = %v, want nil", err)
	}
}
