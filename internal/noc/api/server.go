package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"fabricmesh/internal/noc"
)

// Server adapts a noc.NOC onto the gRPC service described in service.go.
type Server struct {
	n *noc.NOC
}

// New wraps n as a gRPC-facing Server.
func New(n *noc.NOC) *Server {
	return &Server{n: n}
}

// SubmitManifest queues m on the wrapped NOC for delivery over the base
// tree once bootstrap has completed.
func (s *Server) SubmitManifest(ctx context.Context, in *ManifestRequest) (*ManifestReply, error) {
	s.n.Submit(ctx, noc.Manifest{Tree: in.Tree, Body: in.Body})
	return &ManifestReply{Accepted: true}, nil
}

// Events streams every inbound base-tree message until the client
// disconnects or ctx is canceled.
func (s *Server) Events(_ *EventsRequest, stream NOC_EventsServer) error {
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.n.Events():
			if !ok {
				return nil
			}
			if err := stream.Send(&EventMessage{Tree: ev.Tree, Body: ev.Body}); err != nil {
				return err
			}
		}
	}
}

// ListenAndServe starts a gRPC server bound to addr and blocks until
// ctx is canceled, then gracefully stops it.
func ListenAndServe(ctx context.Context, addr string, n *noc.NOC) error {
	log := slog.With("component", "noc-api", "addr", addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api.ListenAndServe: listen: %w", err)
	}

	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterNOCServer(srv, New(n))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	log.Info("noc api listening")

	var retErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down noc api")
	case retErr = <-serveErr:
		log.Error("noc api listener exited", "err", retErr)
	}
	srv.GracefulStop()
	return retErr
}
