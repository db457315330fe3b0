package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/oshokin/alarm-monitor/internal/logger"
)

const grpcWorkerName = "grpc"

// grpcWorker serves the command API until its context is cancelled.
type grpcWorker struct {
	server   *grpc.Server
	listener net.Listener
}

func newGRPCWorker(server *grpc.Server, listener net.Listener) *grpcWorker {
	return &grpcWorker{
		server:   server,
		listener: listener,
	}
}

// Name implements supervisor.Worker.
func (w *grpcWorker) Name() string {
	return grpcWorkerName
}

// Run serves gRPC and stops gracefully once ctx is done.
func (w *grpcWorker) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "GRPC server listening", "listen_address", w.listener.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		w.server.GracefulStop()
		close(done)
	}()

	if err := w.server.Serve(w.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}
