package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
)

const defaultMaxRetries = 3

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes keyed records to one topic. The conversation id is the key,
// so a conversation's records stay on one partition.
type Publisher struct {
	writer     messageWriter
	topic      string
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, topic)
}

func newPublisher(w messageWriter, topic string) *Publisher {
	return &Publisher{
		writer:     w,
		topic:      topic,
		maxRetries: defaultMaxRetries,
		backoff:    100 * time.Millisecond,
		sleep:      sleepContext,
		log:        observability.WithFields("component", "kafka.publisher", "topic", topic),
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// PublishReply writes the reply envelope as JSON.
func (p *Publisher) PublishReply(ctx context.Context, msg core.OutboundMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	return p.publish(ctx, msg.ConversationID, value)
}

// PublishEscalation writes a protobuf-encoded alert.
func (p *Publisher) PublishEscalation(ctx context.Context, esc engine.Escalation) error {
	value, err := EncodeAlert(esc)
	if err != nil {
		return err
	}
	return p.publish(ctx, esc.ConversationID, value)
}

// EscalationHook adapts PublishEscalation for engine.WithEscalationHook.
func (p *Publisher) EscalationHook() engine.EscalationHook {
	return p.PublishEscalation
}

func (p *Publisher) publish(ctx context.Context, key string, value []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err = p.writer.WriteMessages(ctx, msg); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == p.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * p.backoff
		p.log.Warn("kafka write failed, retrying",
			"attempt", attempt+1,
			"conversation_id", key,
			"backoff", backoff,
			"error", err)

		if serr := p.sleep(ctx, backoff); serr != nil {
			return fmt.Errorf("failed to write to %s: %w", p.topic, serr)
		}
	}
	p.log.Error("kafka write failed, giving up",
		"attempts", p.maxRetries+1,
		"conversation_id", key,
		"error", err)
	return fmt.Errorf("failed to write to %s: %w", p.topic, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EncodeAlert serialises an escalation as a google.protobuf.Struct.
func EncodeAlert(esc engine.Escalation) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":              esc.ID,
		"conversation_id": esc.ConversationID,
		"sender_id":       esc.SenderID,
		"level":           string(esc.Level),
		"confidence":      esc.Confidence,
		"keywords":        toList(esc.Keywords),
		"phrases":         toList(esc.Phrases),
		"trend":           string(esc.Trend),
		"message":         esc.Message,
		"timestamp_ms":    esc.At.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build alert: %w", err)
	}
	b, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert: %w", err)
	}
	return b, nil
}

// DecodeAlert is the inverse of EncodeAlert.
func DecodeAlert(b []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	return s, nil
}

func toList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
