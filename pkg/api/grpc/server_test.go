package grpc

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type flagChecker struct{ healthy atomic.Bool }

func (f *flagChecker) IsHealthy() bool { return f.healthy.Load() }

func TestHealthTracksChecker(t *testing.T) {
	checker := &flagChecker{}
	checker.healthy.Store(true)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newServer(lis, &Config{Checker: checker, Interval: time.Hour, Logger: zap.NewNop()})
	go func() { _ = s.Start() }()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	checker.healthy.Store(false)
	s.refresh()

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestNewServer_ListensOnConfiguredAddr(t *testing.T) {
	checker := &flagChecker{}
	checker.healthy.Store(true)

	s, err := NewServer(&Config{Addr: "127.0.0.1:0", Checker: checker, Interval: time.Hour, Logger: zap.NewNop()})
	require.NoError(t, err)
	go func() { _ = s.Start() }()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	host, _, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)

	conn, err := grpc.NewClient(s.listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestNewServer_RejectsBadAddr(t *testing.T) {
	_, err := NewServer(&Config{Addr: "not-an-addr", Logger: zap.NewNop()})
	assert.Error(t, err)
}
