// Package health aggregates dependency probes and exposes them over the
// gRPC health protocol and the admin API.
package health

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"activity-sync/internal/observability"
)

// Probe returns nil when the dependency is usable.
type Probe func(ctx context.Context) error

type Status struct {
	OK         bool              `json:"ok"`
	Components map[string]string `json:"components"`
}

type Checker struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{probes: map[string]Probe{}, timeout: timeout}
}

func (c *Checker) Add(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Check runs every probe concurrently, each under the checker timeout.
func (c *Checker) Check(ctx context.Context) Status {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	probes := make([]Probe, len(names))
	sort.Strings(names)
	for i, name := range names {
		probes[i] = c.probes[name]
	}
	c.mu.RUnlock()

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			if err := probes[i](pctx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = "ok"
		}()
	}
	wg.Wait()

	st := Status{OK: true, Components: make(map[string]string, len(names))}
	for i, name := range names {
		st.Components[name] = results[i]
		if results[i] != "ok" {
			st.OK = false
		}
	}
	return st
}

// GRPCServer serves grpc.health.v1 backed by a Checker.
type GRPCServer struct {
	srv      *grpc.Server
	health   *health.Server
	checker  *Checker
	interval time.Duration
	log      *zap.Logger
}

func NewGRPCServer(checker *Checker, interval time.Duration, log *zap.Logger) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCServer{srv: srv, health: hs, checker: checker, interval: interval, log: log}
}

// Refresh re-runs the probes and publishes the overall serving status.
func (s *GRPCServer) Refresh(ctx context.Context) Status {
	st := s.checker.Check(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if !st.OK {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn("health check failing", zap.Any("components", st.Components))
	}
	s.health.SetServingStatus("", status)
	return st
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.srv.GracefulStop()
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()

	s.log.Info("grpc health server listening", zap.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
