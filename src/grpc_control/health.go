package grpc_control

import (
	"chart-observer/src/logger"
	"chart-observer/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StreamService is the health service name tracking the stream session.
const StreamService = "chart.stream"

// HealthReporter publishes stream session connectivity over the gRPC health protocol.
type HealthReporter struct {
	Server *health.Server
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewHealthReporter reports the process as serving and the stream as not yet connected.
func NewHealthReporter(log *logger.Logger) *HealthReporter {
	if log == nil {
		log = logger.NewLogger(nil, "HealthReporter")
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(StreamService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthReporter{Server: hs, Logger: log}
}

// -----------------------------------------------------------------------------

// Register attaches the health service to a gRPC server.
func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.Server)
}

// -----------------------------------------------------------------------------

// SessionChanged implements interfaces.ISessionObserver.
func (h *HealthReporter) SessionChanged(status models.MSessionStatus) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if status.State == models.SessionConnected {
		serving = healthpb.HealthCheckResponse_SERVING
	}
	h.Logger.Debug("%s is %s (%s)", StreamService, serving, status.State)
	h.Server.SetServingStatus(StreamService, serving)
}

// -----------------------------------------------------------------------------

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (h *HealthReporter) Shutdown() {
	h.Server.Shutdown()
}
