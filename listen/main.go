package listen

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/lualive/livepatch/logger"
	"github.com/lualive/livepatch/pkg/address"
	"github.com/lualive/livepatch/storage"

	"github.com/spf13/viper"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

// Start runs the patch listener configured through viper until SIGINT or
// SIGTERM.
func Start() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Run(ctx)
	stop()
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Sync()
}

func Run(ctx context.Context) error {
	// read configuration
	addr := address.NewPatchAddrFromConfig()
	journalPath := viper.GetString("journal-path")
	healthPort := viper.GetInt("health-port")
	log.Infof("journal-path: %v", journalPath)
	log.Infof("health-port: %v", healthPort)

	journal, err := storage.OpenJournal(journalPath)
	if err != nil {
		return fmt.Errorf("open journal %v: %w", journalPath, err)
	}
	defer journal.Close()
	log.Infof("journal holds %v patches", journal.Len())

	server, err := NewServer(ctx, addr.Get(), journal)
	if err != nil {
		return err
	}
	defer server.Close()

	if healthPort > 0 {
		ip := viper.GetString("patch-ip")
		if ip == "" {
			ip = address.DefaultPatchIP
		}
		lis, err := net.Listen("tcp", fmt.Sprintf("%v:%v", ip, healthPort))
		if err != nil {
			return fmt.Errorf("Failed to listen to port %v: %w", healthPort, err)
		}
		grpcServer, healthServer := StartHealth(lis)
		defer grpcServer.Stop()
		defer healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
		log.Infof("Serving health at %v", lis.Addr())
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()
	return server.Serve()
}
