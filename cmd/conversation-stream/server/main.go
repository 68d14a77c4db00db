package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/grpcserver"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/session"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/workers"
)

// A gRPC-only triage server with in-memory sessions and no external services.
func main() {
	addr := flag.String("addr", ":50051", "listen address")
	numWorkers := flag.Int("workers", 8, "worker count")
	flag.Parse()

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	pool := workers.NewWorkerPool(*numWorkers, 0)
	eng := engine.NewEngine(session.NewStore(session.Options{}))
	s := grpcserver.NewServer(grpcserver.NewConversationServer(eng, pool))

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		s.Stop()
	}()

	log.Printf("gRPC triage server running on %s", *addr)
	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
	pool.Stop()
}
