package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/workers"
)

// Inbound message types.
const (
	TypeMessage = "message"
	TypeClear   = "clear"
)

var ErrNoConversation = errors.New("inbound record has no conversation id")

// InboundMessage is the JSON value of an inbound record. A record whose value
// is not a JSON object is treated as plain message text keyed by conversation.
type InboundMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
}

// DecodeInbound parses m, falling back to the record key for the conversation id.
// A value that is not a JSON object is taken as the message text.
func DecodeInbound(m kafka.Message) (InboundMessage, error) {
	var in InboundMessage

	v := bytes.TrimSpace(m.Value)
	if len(v) == 0 || v[0] != '{' || json.Unmarshal(v, &in) != nil {
		in = InboundMessage{Text: string(m.Value)}
	}

	if in.ConversationID == "" {
		in.ConversationID = string(m.Key)
	}
	if in.ConversationID == "" {
		return InboundMessage{}, ErrNoConversation
	}
	if in.Type == "" {
		in.Type = TypeMessage
	}
	if in.Type != TypeMessage && in.Type != TypeClear {
		return InboundMessage{}, fmt.Errorf("unknown inbound type %q", in.Type)
	}
	return in, nil
}

// ReplySink receives the reply for every inbound message.
type ReplySink interface {
	PublishReply(ctx context.Context, msg core.OutboundMessage) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Consumer struct {
	reader  messageReader
	engine  *engine.Engine
	pool    *workers.WorkerPool
	replies ReplySink
	log     *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, eng *engine.Engine, pool *workers.WorkerPool, replies ReplySink) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, eng, pool, replies)
}

func newConsumer(r messageReader, eng *engine.Engine, pool *workers.WorkerPool, replies ReplySink) *Consumer {
	return &Consumer{
		reader:  r,
		engine:  eng,
		pool:    pool,
		replies: replies,
		log:     observability.WithFields("component", "kafka.consumer"),
	}
}

// Start reads until ctx is cancelled. Records for one conversation are handled
// in offset order on that conversation's worker.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.reader.Close()

	c.log.Info("kafka consumer started")
	workCtx := context.WithoutCancel(ctx)

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		in, err := DecodeInbound(m)
		if err != nil {
			c.log.Warn("dropping inbound record",
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err)
			continue
		}

		err = c.pool.Dispatch(ctx, in.ConversationID, func() { c.handle(workCtx, in) })
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to dispatch record: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, in InboundMessage) {
	if in.Type == TypeClear {
		c.engine.Clear(ctx, in.ConversationID)
		return
	}

	reply := c.engine.Reply(ctx, in.Text, in.ConversationID, in.SenderID)
	if c.replies == nil {
		return
	}
	if err := c.replies.PublishReply(ctx, reply); err != nil {
		c.log.Error("failed to publish reply",
			"conversation_id", in.ConversationID,
			"message_id", reply.ID,
			"error", err)
	}
}
