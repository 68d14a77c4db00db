package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/workers"
)

type ConversationServer struct {
	workerPool *workers.WorkerPool
	engine     *engine.Engine
}

func NewConversationServer(e *engine.Engine, pool *workers.WorkerPool) *ConversationServer {
	return &ConversationServer{
		workerPool: pool,
		engine:     e,
	}
}

// Converse reads client events until EOF. Each event is handled on the worker
// that owns its conversation, so replies for one conversation come back in the
// order the messages were sent.
func (s *ConversationServer) Converse(stream ConverseStream) error {
	ctx := stream.Context()
	log := observability.LoggerFromContext(ctx).With("component", "grpc.converse")
	log.Info("stream started")

	var (
		sendMu sync.Mutex
		wg     sync.WaitGroup
	)
	send := func(ev *ServerEvent) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if err := stream.Send(ev); err != nil {
			log.Warn("stream send failed", "conversation_id", ev.ConversationID, "error", err)
		}
	}
	// Workers may still be replying; the stream must outlive them.
	defer wg.Wait()

	// Engine work is not abandoned when the client hangs up mid-exchange.
	workCtx := context.WithoutCancel(ctx)

	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			log.Info("stream closed by client")
			return nil
		}
		if err != nil {
			log.Warn("stream recv error", "error", err)
			return err
		}

		if ev.ConversationID == "" {
			send(&ServerEvent{Type: EventError, Error: "conversationId is required"})
			continue
		}

		task, err := s.task(workCtx, ev, send)
		if err != nil {
			send(&ServerEvent{Type: EventError, ConversationID: ev.ConversationID, Error: err.Error()})
			continue
		}

		wg.Add(1)
		err = s.workerPool.Dispatch(ctx, ev.ConversationID, func() {
			defer wg.Done()
			task()
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, workers.ErrPoolStopped) {
				return status.Error(codes.Unavailable, "server is shutting down")
			}
			return status.FromContextError(err).Err()
		}
	}
}

func (s *ConversationServer) task(ctx context.Context, ev *ClientEvent, send func(*ServerEvent)) (func(), error) {
	switch ev.Type {
	case EventMessage, "":
		return func() {
			reply := s.engine.Reply(ctx, ev.Text, ev.ConversationID, ev.SenderID)
			send(&ServerEvent{Type: EventReply, ConversationID: ev.ConversationID, Reply: &reply})
		}, nil
	case EventClear:
		return func() {
			s.engine.Clear(ctx, ev.ConversationID)
			send(&ServerEvent{Type: EventCleared, ConversationID: ev.ConversationID})
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// Server owns the grpc.Server carrying the triage and health services.
type Server struct {
	server *grpc.Server
	health *health.Server
}

func NewServer(conv *ConversationServer, opts ...grpc.ServerOption) *Server {
	s := &Server{
		server: grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	s.server.RegisterService(&ServiceDesc, conv)
	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s.server, s.health)
	return s
}

func (s *Server) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *Server) ListenAndServe(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %d: %w", port, err)
	}
	return s.Serve(lis)
}

// Stop marks the services NOT_SERVING and drains in-flight streams.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
