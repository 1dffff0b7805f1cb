// Package grpc exposes the node's gRPC surface: the standard health service, used by
// load balancers and orchestrators that probe over gRPC instead of HTTP.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/kunay1/seal/pkg/logger"
)

// KeyServerService is the health service name reported alongside the overall status.
const KeyServerService = "seal.KeyServer"

// CheckFunc probes dependencies and returns a status per component; "ok" means healthy.
type CheckFunc func(ctx context.Context) map[string]string

// HealthServer serves grpc.health.v1 and keeps its status in sync with dependency checks.
type HealthServer struct {
	addr   string
	server *grpc.Server
	health *health.Server
	check  CheckFunc
	log    logger.Logger
}

// NewHealthServer creates the gRPC server. check may be nil, in which case the node always
// reports SERVING.
func NewHealthServer(addr string, check CheckFunc, log logger.Logger) *HealthServer {
	log = log.WithComponent("grpc")
	chain := NewInterceptorChain(log)

	s := grpc.NewServer(chain.ChainUnaryInterceptors())
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return &HealthServer{
		addr:   addr,
		server: s,
		health: hs,
		check:  check,
		log:    log,
	}
}

// Serve accepts connections on lis until Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.Refresh(context.Background())
	s.log.Info(context.Background(), "Starting gRPC server", logger.String("address", lis.Addr().String()))
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Start listens on the configured address and serves.
func (s *HealthServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Refresh runs the dependency checks once and publishes the result.
func (s *HealthServer) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		for name, result := range s.check(ctx) {
			if result != "ok" {
				s.log.Warn(ctx, "Dependency unhealthy", logger.String("component", name), logger.String("status", result))
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(KeyServerService, status)
}

// Monitor refreshes the health status every interval until ctx is done.
func (s *HealthServer) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cctx, cancel := context.WithTimeout(ctx, interval)
			s.Refresh(cctx)
			cancel()
		}
	}
}

// Stop marks every service NOT_SERVING and drains connections, forcing a stop when ctx ends.
func (s *HealthServer) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
}
