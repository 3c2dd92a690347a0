package grpcserver

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/slotwise/slotwise/libs/grpcx"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func TestHealthReportsServingStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.Start(ctx, "127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, err := grpcx.Dial(ctx, s.Addr().String(), grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial status = %v", got)
	}
	s.SetServing(true)
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", got)
	}
	s.SetServing(false)
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v", got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.Start(ctx, "127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn, err := grpcx.Dial(ctx, s.Addr().String(), grpcx.DialOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	var header metadata.MD
	callCtx := grpcx.WithRequestID(ctx, "req-entitlements-1")
	_, err = healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: ServiceName}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got := header.Get(grpcx.RequestIDMetadataKey); len(got) != 1 || got[0] != "req-entitlements-1" {
		t.Fatalf("request id header = %v", got)
	}
}
