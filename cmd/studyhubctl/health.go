package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcserver "studyhub/internal/grpc"
)

func init() {
	HealthCommand.Flags().String("addr", "", "gRPC address, defaults to the configured grpc_addr")
	HealthCommand.Flags().Duration("timeout", 5*time.Second, "dial and check timeout")
	RootCmd.AddCommand(&HealthCommand)
}

var HealthCommand = cobra.Command{
	Use:   "health",
	Short: "Check the server's gRPC health service",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		if addr == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			addr = cfg.GRPCAddr
		}
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}

		status, err := checkHealth(commandContext(cmd), addr, timeout)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		if status != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("%s is %s", addr, status)
		}
		return nil
	},
}

func dial(ctx context.Context, addr string, timeout time.Duration, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	return grpc.DialContext(ctx, addr, opts...)
}

func checkHealth(ctx context.Context, addr string, timeout time.Duration, opts ...grpc.DialOption) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := dial(ctx, addr, timeout, opts...)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
