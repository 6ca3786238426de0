package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"studyhub/internal/auth"
	"studyhub/internal/bootstrap"
	"studyhub/internal/config"
	studyhubgrpc "studyhub/internal/grpc"
	internalhttp "studyhub/internal/http"
	"studyhub/internal/idempotency"
	"studyhub/internal/jobs"
	"studyhub/internal/log"
	"studyhub/internal/ratelimit"
	"studyhub/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.New(os.Getenv("ENV")).WithError(err).Fatal("invalid configuration")
	}
	logger := log.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("store init failed")
	}
	defer closeStore()

	redisClient, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("redis init failed")
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.WithError(err).Warn("redis close error")
			}
		}()
	}

	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		logger.WithError(err).Fatal("token codec init failed")
	}
	repos := repository.New(store)
	limiter := ratelimit.New(redisClient, cfg.AuthRateLimitPerMin, time.Minute)
	replays := idempotency.New(redisClient, cfg.IdempotencyTTL, cfg.IdempotencyPendingTTL)

	var sweepers []jobs.Sweeper
	for _, candidate := range []interface{}{limiter, replays} {
		if s, ok := candidate.(jobs.Sweeper); ok {
			sweepers = append(sweepers, s)
		}
	}
	jobs.StartSweepJob(ctx, cfg.SweepInterval, logger, sweepers...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := internalhttp.NewServer(internalhttp.Deps{
		Config:      cfg,
		Log:         logger,
		Repos:       repos,
		Codec:       codec,
		Limiter:     limiter,
		Idempotency: replays,
		Registry:    registry,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer := studyhubgrpc.NewServer(auth.NewGate(codec, repos.Users), logger)

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("studyhub http listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http server error")
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.WithError(err).Fatal("grpc listen error")
		}
		logger.WithField("addr", cfg.GRPCAddr).Info("studyhub grpc listening")
		if err := grpcServer.Serve(listener); err != nil {
			logger.WithError(err).Fatal("grpc server error")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}
	grpcServer.GracefulStop()
}
