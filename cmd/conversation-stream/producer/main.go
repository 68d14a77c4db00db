package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/grpcserver"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC server address")
	conversationID := flag.String("conversation_id", "", "conversation id (optional)")
	sender := flag.String("sender", "cli-user", "sender id")
	flag.Parse()

	if *conversationID == "" {
		*conversationID = fmt.Sprintf("conversation-%d", time.Now().UnixNano())
	}

	log.Printf("Connecting to gRPC server at %s", *addr)

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	stream, err := grpcserver.Converse(ctx, conn)
	if err != nil {
		log.Fatalf("failed to open stream: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ev, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				log.Printf("stream recv error: %v", err)
				return
			}
			printEvent(ev)
		}
	}()

	log.Printf("Conversation %s. Type a message and press ENTER; /clear resets, Ctrl+D ends.", *conversationID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		ev := &grpcserver.ClientEvent{
			Type:           grpcserver.EventMessage,
			ConversationID: *conversationID,
			SenderID:       *sender,
			Text:           text,
		}
		if text == "/clear" {
			ev = &grpcserver.ClientEvent{Type: grpcserver.EventClear, ConversationID: *conversationID}
		}
		if err := stream.Send(ev); err != nil {
			log.Fatalf("failed to send: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("stdin error: %v", err)
	}

	if err := stream.CloseSend(); err != nil {
		log.Printf("close send: %v", err)
	}
	<-done
}

func printEvent(ev *grpcserver.ServerEvent) {
	switch ev.Type {
	case grpcserver.EventReply:
		r := ev.Reply
		fmt.Printf("\n[%s %.2f trend=%s]\n%s\n", r.CrisisLevel.Level, r.CrisisLevel.Confidence, r.Trend, r.Content)
		for _, q := range r.FollowUpQuestions {
			fmt.Printf("  ? %s\n", q)
		}
		for _, c := range r.EmergencyContacts {
			fmt.Printf("  ! %s\n", c)
		}
	case grpcserver.EventCleared:
		fmt.Printf("\n[conversation %s cleared]\n", ev.ConversationID)
	default:
		fmt.Printf("\n[%s] %s\n", ev.Type, ev.Error)
	}
}
