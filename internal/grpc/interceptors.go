package grpc

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"studyhub/internal/apperr"
	"studyhub/internal/auth"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// NewAuthUnaryInterceptor runs the auth gate for every method outside the
// health service and stores the identity in the context.
func NewAuthUnaryInterceptor(gate *auth.Gate) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}
		identity, err := gate.Authenticate(ctx, authorizationFromMetadata(ctx))
		if err != nil {
			return nil, err
		}
		return handler(auth.WithIdentity(ctx, identity), req)
	}
}

// NewErrorUnaryInterceptor turns apperr errors into status errors. It must be
// the outermost interceptor so failures from the auth gate are translated too.
func NewErrorUnaryInterceptor(log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		appErr := apperr.As(err)
		if appErr.Kind == apperr.Unexpected {
			log.WithError(err).WithField("method", info.FullMethod).Error("grpc call failed")
		}
		return nil, status.Error(apperr.GRPCCode(appErr.Kind), appErr.Code)
	}
}

func authorizationFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
