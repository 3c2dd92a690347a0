package grpcserver

import (
	"context"
	"log/slog"
	"net"

	"github.com/slotwise/slotwise/libs/grpcx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported through grpc.health.v1.
const ServiceName = "slotwise.entitlements.v1"

type Server struct {
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
	addr   net.Addr
}

func New(logger *slog.Logger) *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerRequestIDInterceptor(),
			grpcx.UnaryServerLogInterceptor(logger),
		),
	)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{srv: srv, health: hs, logger: logger}
}

// Start listens on addr and serves until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.addr = lis.Addr()

	go func() {
		s.logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := s.srv.Serve(lis); err != nil {
			s.logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()
	return nil
}

func (s *Server) Addr() net.Addr { return s.addr }

// SetServing flips the reported status of ServiceName.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
}
