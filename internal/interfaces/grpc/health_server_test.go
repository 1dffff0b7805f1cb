package grpc

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/errors"
	"github.com/kunay1/seal/pkg/logger"
)

func startHealthServer(t *testing.T, check CheckFunc) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewHealthServer("bufnet", check, logger.NewNoopLogger())
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop(context.Background())
	})
	return srv, healthpb.NewHealthClient(conn)
}

func TestHealthServerReportsDependencyStatus(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv, client := startHealthServer(t, func(context.Context) map[string]string {
		if healthy.Load() {
			return map[string]string{"redis": "ok"}
		}
		return map[string]string{"redis": "error: connection refused"}
	})
	ctx := context.Background()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: KeyServerService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	healthy.Store(false)
	srv.Refresh(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
	assert.Equal(t, grpcCodes.NotFound, status.Code(err))
}

func TestErrorInterceptorMapsCodes(t *testing.T) {
	ic := NewInterceptorChain(logger.NewNoopLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/seal.KeyServer/Test"}

	tests := []struct {
		err  error
		want grpcCodes.Code
	}{
		{errors.ErrPolicyNotSatisfied, grpcCodes.PermissionDenied},
		{errors.ErrMalformedIdentifier, grpcCodes.InvalidArgument},
		{errors.ErrRateLimited, grpcCodes.ResourceExhausted},
		{errors.ErrEvaluatorUnavailable, grpcCodes.Unavailable},
		{assert.AnError, grpcCodes.Internal},
		{status.Error(grpcCodes.NotFound, "gone"), grpcCodes.NotFound},
	}
	for _, tt := range tests {
		_, err := ic.UnaryErrorInterceptor()(context.Background(), nil, info,
			func(context.Context, interface{}) (interface{}, error) { return nil, tt.err })
		assert.Equal(t, tt.want, status.Code(err), tt.err.Error())
	}
}

func TestRecoveryAndRequestIDInterceptors(t *testing.T) {
	ic := NewInterceptorChain(logger.NewNoopLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/seal.KeyServer/Test"}

	_, err := ic.UnaryRecoveryInterceptor()(context.Background(), nil, info,
		func(context.Context, interface{}) (interface{}, error) { panic("boom") })
	assert.Equal(t, grpcCodes.Internal, status.Code(err))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "abc"))
	var got interface{}
	_, err = ic.UnaryRequestIDInterceptor()(ctx, nil, info,
		func(ctx context.Context, _ interface{}) (interface{}, error) {
			got = ctx.Value(constants.ContextKeyRequestID)
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}
