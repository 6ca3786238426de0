package grpc

import (
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"studyhub/internal/auth"
)

// ServiceName is the name reported by the health service besides "".
const ServiceName = "studyhub"

// NewServer builds the gRPC server with the health service registered and
// serving. The returned health server lets shutdown flip it to NOT_SERVING.
func NewServer(gate *auth.Gate, log logrus.FieldLogger) (*grpc.Server, *health.Server) {
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		NewErrorUnaryInterceptor(log),
		NewAuthUnaryInterceptor(gate),
	))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}
