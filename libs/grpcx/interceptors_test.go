package grpcx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestUnaryClientRequestIDInterceptorPropagates(t *testing.T) {
	interceptor := UnaryClientRequestIDInterceptor()
	ctx := WithRequestID(context.Background(), "req-123")

	var got string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
			got = vals[0]
		}
		return nil
	}
	if err := interceptor(ctx, "/grpc.health.v1.Health/Check", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if got != "req-123" {
		t.Fatalf("expected request id in metadata, got %q", got)
	}
}

func TestUnaryServerRequestIDInterceptorGeneratesID(t *testing.T) {
	interceptor := UnaryServerRequestIDInterceptor()
	var seen string
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x"}, func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if len(seen) != 36 {
		t.Fatalf("expected generated uuid, got %q", seen)
	}
}

func TestUnaryServerLogInterceptorPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	interceptor := UnaryServerLogInterceptor(logger)

	info := &grpc.UnaryServerInfo{FullMethod: "/slotwise.entitlements.v1.Test/Fail"}
	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "missing")
	})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("unexpected err %v", err)
	}
	if !strings.Contains(buf.String(), `"code":"NotFound"`) || !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("unexpected log line %s", buf.String())
	}
}
