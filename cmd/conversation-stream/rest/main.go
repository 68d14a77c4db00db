package main

import (
	"flag"
	"log"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/httpapi"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/session"
)

// A REST-only triage server with in-memory sessions and no rate limiting.
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	eng := engine.NewEngine(session.NewStore(session.Options{}))
	r := httpapi.NewRouter(eng, httpapi.Options{})

	log.Printf("REST API running on %s", *addr)
	if err := r.Run(*addr); err != nil {
		log.Fatalf("failed to run http server: %v", err)
	}
}
