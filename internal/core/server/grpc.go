// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/auth"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/logging"
)

// shutdownTimeout bounds GracefulStop before a forced stop.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages the rule tools gRPC server and its metrics endpoint.
type GRPCServer struct {
	server  *grpc.Server
	health  *health.Server
	metrics *Metrics
	httpSrv *http.Server
	config  config.ServerConfig
	log     *slog.Logger
}

// NewGRPCServer creates the server with timeout, metrics, logging and, when
// authenticator is non-nil, auth interceptors, and registers the service and
// the health service.
func NewGRPCServer(cfg config.ServerConfig, service api.RuleToolsServer, authenticator *auth.Authenticator, log *slog.Logger) (*GRPCServer, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	log = logging.OrDefault(log).With("component", "server")
	metrics := NewMetrics()

	interceptors := []grpc.UnaryServerInterceptor{
		metrics.UnaryInterceptor(),
		loggingInterceptor(log),
	}
	if authenticator != nil {
		interceptors = append(interceptors, authenticator.UnaryInterceptor())
	}
	if cfg.RequestTimeout > 0 {
		interceptors = append(interceptors, timeoutInterceptor(cfg.RequestTimeout))
	}

	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}
	if cfg.MaxMessageBytes > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(cfg.MaxMessageBytes),
			grpc.MaxSendMsgSize(cfg.MaxMessageBytes),
		)
	}

	server := grpc.NewServer(opts...)
	api.RegisterRuleToolsServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server:  server,
		health:  healthServer,
		metrics: metrics,
		config:  cfg,
		log:     log,
	}, nil
}

// Metrics returns the server's metrics.
func (s *GRPCServer) Metrics() *Metrics {
	return s.metrics
}

// Start binds the configured address, starts the metrics endpoint when
// enabled and serves until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := s.config.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	if maddr := s.config.MetricsAddr(); maddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.httpSrv = &http.Server{Addr: maddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("metrics endpoint failed", "addr", maddr, "error", err)
			}
		}()
		s.log.Info("metrics endpoint listening", "addr", maddr)
	}

	s.log.Info("rule tools service listening", "addr", listener.Addr().String())
	return s.Serve(listener)
}

// Serve serves gRPC on an existing listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	return s.server.Serve(listener)
}

// Shutdown marks the service not serving and stops gracefully, forcing a
// stop when ctx ends or after shutdownTimeout.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Warn("metrics endpoint shutdown", "error", err)
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}

func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Debug("request failed",
				"method", info.FullMethod,
				"code", status.Code(err).String(),
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
		}
		return resp, err
	}
}
