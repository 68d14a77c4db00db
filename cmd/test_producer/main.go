package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	triagekafka "github.com/kaphack/realtime-crisis-triage-engine/internal/kafka"
)

func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma separated broker list")
	topic := flag.String("topic", "conversations", "inbound topic")
	conversationID := flag.String("conversation_id", "conversation-A", "conversation id")
	sender := flag.String("sender", "test-user", "sender id")
	flag.Parse()

	w := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}

	texts := flag.Args()
	if len(texts) == 0 {
		texts = []string{"I'm stressed about work", "I can't sleep and I feel hopeless"}
	}

	msgs := make([]kafka.Message, 0, len(texts))
	for _, text := range texts {
		value, err := json.Marshal(triagekafka.InboundMessage{
			Type:           triagekafka.TypeMessage,
			ConversationID: *conversationID,
			SenderID:       *sender,
			Text:           text,
		})
		if err != nil {
			log.Fatal("failed to encode message:", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(*conversationID), Value: value})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.WriteMessages(ctx, msgs...); err != nil {
		log.Fatal("failed to write messages:", err)
	}
	if err := w.Close(); err != nil {
		log.Fatal("failed to close writer:", err)
	}
	log.Printf("Sent %d messages for %s", len(msgs), *conversationID)
}
