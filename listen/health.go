package listen

import (
	"net"
	"time"

	log "github.com/lualive/livepatch/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// StartHealth serves the standard grpc health service on lis. The empty
// service name reports the status of the patch listener.
func StartHealth(lis net.Listener) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
		}),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("Failed to serve grpc health: %v", err)
		}
	}()
	return grpcServer, healthServer
}
