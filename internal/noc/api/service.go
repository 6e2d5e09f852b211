// Package api is the gRPC front door onto a NOC's application channel:
// SubmitManifest lets an operator push a free-form deployment over the
// base tree, and Events streams inbound base-tree traffic back out.
// There is no protoc toolchain available in this build environment, so
// the service description below is hand-written in the shape
// protoc-gen-go-grpc would otherwise generate, riding on the jsonCodec
// in codec.go instead of the protobuf wire format.
package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// ManifestRequest is what an operator submits for deployment.
type ManifestRequest struct {
	Tree string `json:"tree"`
	Body []byte `json:"body"`
}

// ManifestReply acknowledges a submission.
type ManifestReply struct {
	Accepted bool `json:"accepted"`
}

// EventsRequest has no fields; it exists so the RPC has a typed input.
type EventsRequest struct{}

// EventMessage is one item streamed back by Events.
type EventMessage struct {
	Tree string `json:"tree"`
	Body []byte `json:"body"`
}

// NOCServer is the service a Server implements.
type NOCServer interface {
	SubmitManifest(context.Context, *ManifestRequest) (*ManifestReply, error)
	Events(*EventsRequest, NOC_EventsServer) error
}

// NOC_EventsServer is the server-side handle for a streaming Events call.
type NOC_EventsServer interface {
	Send(*EventMessage) error
	grpc.ServerStream
}

type nocEventsServer struct {
	grpc.ServerStream
}

func (s *nocEventsServer) Send(m *EventMessage) error {
	return s.ServerStream.SendMsg(m)
}

// NOCClient is the client-side stub for any sibling process that wants
// to submit manifests over gRPC rather than through the in-process
// NOC.Submit method directly; no test in this module uses it.
type NOCClient interface {
	SubmitManifest(ctx context.Context, in *ManifestRequest, opts ...grpc.CallOption) (*ManifestReply, error)
	Events(ctx context.Context, in *EventsRequest, opts ...grpc.CallOption) (NOC_EventsClient, error)
}

// NOC_EventsClient is the client-side handle for a streaming Events call.
type NOC_EventsClient interface {
	Recv() (*EventMessage, error)
	grpc.ClientStream
}

type nocEventsClient struct {
	grpc.ClientStream
}

func (c *nocEventsClient) Recv() (*EventMessage, error) {
	m := new(EventMessage)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type nocClient struct {
	cc grpc.ClientConnInterface
}

// NewNOCClient wraps an established connection as a NOCClient.
func NewNOCClient(cc grpc.ClientConnInterface) NOCClient {
	return &nocClient{cc: cc}
}

func (c *nocClient) SubmitManifest(ctx context.Context, in *ManifestRequest, opts ...grpc.CallOption) (*ManifestReply, error) {
	out := new(ManifestReply)
	opts = append(opts, grpc.CallContentSubtype(jsonCodec{}.Name()))
	if err := c.cc.Invoke(ctx, "/noc.NOC/SubmitManifest", in, out, opts...); err != nil {
		return nil, fmt.Errorf("api.NOCClient.SubmitManifest: %w", err)
	}
	return out, nil
}

func (c *nocClient) Events(ctx context.Context, in *EventsRequest, opts ...grpc.CallOption) (NOC_EventsClient, error) {
	opts = append(opts, grpc.CallContentSubtype(jsonCodec{}.Name()))
	stream, err := c.cc.NewStream(ctx, &NOC_ServiceDesc.Streams[0], "/noc.NOC/Events", opts...)
	if err != nil {
		return nil, fmt.Errorf("api.NOCClient.Events: %w", err)
	}
	x := &nocEventsClient{stream}
	if err := x.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func submitManifestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ManifestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NOCServer).SubmitManifest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/noc.NOC/SubmitManifest"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NOCServer).SubmitManifest(ctx, req.(*ManifestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(EventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(NOCServer).Events(in, &nocEventsServer{stream})
}

// NOC_ServiceDesc describes the NOC service to grpc.Server.
var NOC_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "noc.NOC",
	HandlerType: (*NOCServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitManifest",
			Handler:    submitManifestHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Events",
			Handler:       eventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "noc.proto",
}

// RegisterNOCServer attaches srv to s under the NOC service name.
func RegisterNOCServer(s grpc.ServiceRegistrar, srv NOCServer) {
	s.RegisterService(&NOC_ServiceDesc, srv)
}
