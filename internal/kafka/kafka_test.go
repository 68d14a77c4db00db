package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/session"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/workers"
)

type fakeReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	written  []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.written...)
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		msg     kafka.Message
		want    InboundMessage
		wantErr bool
	}{
		{
			name: "json message",
			msg:  kafka.Message{Value: []byte(`{"conversation_id":"c1","sender_id":"u1","text":"hi"}`)},
			want: InboundMessage{Type: TypeMessage, ConversationID: "c1", SenderID: "u1", Text: "hi"},
		},
		{
			name: "json clear keyed",
			msg:  kafka.Message{Key: []byte("c2"), Value: []byte(`{"type":"clear"}`)},
			want: InboundMessage{Type: TypeClear, ConversationID: "c2"},
		},
		{
			name: "plain text uses key",
			msg:  kafka.Message{Key: []byte("c3"), Value: []byte("help me please")},
			want: InboundMessage{Type: TypeMessage, ConversationID: "c3", Text: "help me please"},
		},
		{
			name:    "no conversation",
			msg:     kafka.Message{Value: []byte("orphan")},
			wantErr: true,
		},
		{
			name: "truncated json is text",
			msg:  kafka.Message{Key: []byte("c4"), Value: []byte(`{"text":`)},
			want: InboundMessage{Type: TypeMessage, ConversationID: "c4", Text: `{"text":`},
		},
		{
			name: "text starting with brace",
			msg:  kafka.Message{Key: []byte("c6"), Value: []byte("{sigh} I'm sad")},
			want: InboundMessage{Type: TypeMessage, ConversationID: "c6", Text: "{sigh} I'm sad"},
		},
		{
			name:    "unkeyed text starting with brace",
			msg:     kafka.Message{Value: []byte("{sigh}")},
			wantErr: true,
		},
		{
			name:    "unknown type",
			msg:     kafka.Message{Key: []byte("c5"), Value: []byte(`{"type":"shout"}`)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound(tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsumer_RepliesAndClears(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Key: []byte("c1"), Value: []byte(`{"sender_id":"u1","text":"I'm stressed about work"}`)},
		{Key: []byte("c1"), Value: []byte(`{"type":"clear"}`)},
		{Key: []byte("c1"), Value: []byte("hello")},
		{Value: []byte("dropped, no key")},
	}}
	writer := &fakeWriter{}
	pool := workers.NewWorkerPool(2, 8)
	defer pool.Stop()
	eng := engine.NewEngine(session.NewStore(session.Options{}))

	c := newConsumer(reader, eng, pool, newPublisher(writer, "replies"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(writer.messages()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, reader.closed)

	msgs := writer.messages()
	var first, second core.OutboundMessage
	require.NoError(t, json.Unmarshal(msgs[0].Value, &first))
	require.NoError(t, json.Unmarshal(msgs[1].Value, &second))

	assert.Equal(t, "c1", string(msgs[0].Key))
	assert.Equal(t, core.LevelMedium, first.CrisisLevel.Level)
	assert.Equal(t, core.SenderBot, first.SenderType)

	// The clear in between resets the conversation, so the greeting is a first turn again.
	bank := core.DefaultTemplateBank()
	greeting, _ := bank.Reply(core.LevelLow, true)
	assert.Equal(t, greeting, second.Content)
}

func TestPublisher_RetriesThenSucceeds(t *testing.T) {
	writer := &fakeWriter{failures: 2}
	p := newPublisher(writer, "replies")
	p.backoff = time.Millisecond

	err := p.PublishReply(context.Background(), core.OutboundMessage{ID: "m1", ConversationID: "c1"})
	require.NoError(t, err)
	assert.Len(t, writer.messages(), 1)
}

func TestPublisher_GivesUp(t *testing.T) {
	writer := &fakeWriter{failures: 10}
	p := newPublisher(writer, "alerts")
	p.backoff = time.Millisecond

	err := p.PublishReply(context.Background(), core.OutboundMessage{ConversationID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alerts")
	assert.Empty(t, writer.messages())
}

func TestPublisher_NoBackoffAfterLastAttempt(t *testing.T) {
	writer := &fakeWriter{failures: 10}
	p := newPublisher(writer, "alerts")
	var waits []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	err := p.PublishReply(context.Background(), core.OutboundMessage{ConversationID: "c1"})
	require.Error(t, err)

	assert.Equal(t, []time.Duration{p.backoff, 2 * p.backoff, 3 * p.backoff}, waits)
	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Equal(t, 10-(defaultMaxRetries+1), writer.failures)
}

func TestAlertRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	esc := engine.Escalation{
		ID:             "e1",
		ConversationID: "c1",
		SenderID:       "u1",
		Level:          core.LevelCritical,
		Confidence:     0.95,
		Keywords:       []string{"suicide", "self-harm", "death"},
		Phrases:        []string{"kill myself"},
		Trend:          core.TrendEscalating,
		Message:        "I want to kill myself",
		At:             at,
	}

	b, err := EncodeAlert(esc)
	require.NoError(t, err)

	s, err := DecodeAlert(b)
	require.NoError(t, err)
	m := s.AsMap()
	assert.Equal(t, "critical", m["level"])
	assert.Equal(t, "c1", m["conversation_id"])
	assert.Equal(t, []any{"kill myself"}, m["phrases"])
	assert.InDelta(t, float64(at.UnixMilli()), m["timestamp_ms"], 0)
}

func TestEscalationHookPublishes(t *testing.T) {
	writer := &fakeWriter{}
	p := newPublisher(writer, "alerts")
	eng := engine.NewEngine(session.NewStore(session.Options{}), engine.WithEscalationHook(p.EscalationHook()))

	eng.Handle(context.Background(), "I feel hopeless", "c9", "u1")
	eng.Handle(context.Background(), "just a little sad", "c9", "u1")
	eng.Close()

	msgs := writer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "c9", string(msgs[0].Key))
	s, err := DecodeAlert(msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "high", s.AsMap()["level"])
}
