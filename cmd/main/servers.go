package main

import (
	"context"
	"fmt"
	"net"

	"chart-observer/src/logger"
	"chart-observer/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// runningServers tracks what startServers launched.
type runningServers struct {
	components *components
	grpc       *grpc.Server
	logger     *logger.Logger
}

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components
func startServers(c *components, config *models.MConfig, appLogger *logger.Logger) *runningServers {
	running := &runningServers{components: c, logger: appLogger}

	// 1. Chart server
	go func() {
		if err := c.Chart.Start(); err != nil {
			appLogger.Error("Chart server failed: %v", err)
		}
	}()

	// 2. gRPC health server
	port := config.GrpcPort
	if port == 0 {
		return running
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.GrpcHost, port))
	if err != nil {
		appLogger.Error("Failed to listen for gRPC: %v", err)
		return running
	}

	grpcServer := grpc.NewServer()
	c.Health.Register(grpcServer)
	reflection.Register(grpcServer)
	running.grpc = grpcServer

	go func() {
		appLogger.Info("Starting gRPC health server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC server failed: %v", err)
		}
	}()
	return running
}

// -----------------------------------------------------------------------------

func (r *runningServers) Stop(ctx context.Context) {
	r.components.Health.Shutdown()
	if r.grpc != nil {
		r.grpc.GracefulStop()
	}
	if err := r.components.Chart.Stop(ctx); err != nil {
		r.logger.Warning("Chart server shutdown: %v", err)
	}
}
