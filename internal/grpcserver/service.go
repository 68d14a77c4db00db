package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
)

const (
	ServiceName    = "triage.v1.TriageService"
	converseMethod = "/" + ServiceName + "/Converse"
)

// Client event types.
const (
	EventMessage = "message"
	EventClear   = "clear"
)

// Server event types.
const (
	EventReply   = "reply"
	EventCleared = "cleared"
	EventError   = "error"
)

// ClientEvent is one inbound frame on the Converse stream.
type ClientEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId,omitempty"`
	Text           string `json:"text,omitempty"`
}

// ServerEvent is one outbound frame on the Converse stream.
type ServerEvent struct {
	Type           string                `json:"type"`
	ConversationID string                `json:"conversationId,omitempty"`
	Reply          *core.OutboundMessage `json:"reply,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// TriageServer is implemented by ConversationServer.
type TriageServer interface {
	Converse(ConverseStream) error
}

// ConverseStream is the server side of a Converse call.
type ConverseStream interface {
	Send(*ServerEvent) error
	Recv() (*ClientEvent, error)
	grpc.ServerStream
}

type converseServerStream struct {
	grpc.ServerStream
}

func (s *converseServerStream) Send(ev *ServerEvent) error {
	return s.ServerStream.SendMsg(ev)
}

func (s *converseServerStream) Recv() (*ClientEvent, error) {
	ev := new(ClientEvent)
	if err := s.ServerStream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func converseHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TriageServer).Converse(&converseServerStream{stream})
}

// ServiceDesc describes the triage service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TriageServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Converse",
			Handler:       converseHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "triage/v1/triage.proto",
}

// ConverseClient is the client side of a Converse call.
type ConverseClient interface {
	Send(*ClientEvent) error
	Recv() (*ServerEvent, error)
	grpc.ClientStream
}

type converseClientStream struct {
	grpc.ClientStream
}

func (c *converseClientStream) Send(ev *ClientEvent) error {
	return c.ClientStream.SendMsg(ev)
}

func (c *converseClientStream) Recv() (*ServerEvent, error) {
	ev := new(ServerEvent)
	if err := c.ClientStream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Converse opens a duplex stream on cc using the JSON codec.
func Converse(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (ConverseClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], converseMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &converseClientStream{stream}, nil
}
