package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/session"
)

// Escalation is emitted after a high or critical reply has been recorded.
type Escalation struct {
	ID             string
	ConversationID string
	SenderID       string
	Level          core.Level
	Confidence     float64
	Keywords       []string
	Phrases        []string
	Trend          core.Trend
	Message        string
	At             time.Time
}

// EscalationHook observes escalations. Hooks run on a background goroutine
// after the reply has been returned, each bounded by the hook timeout; errors
// and panics are logged and swallowed.
type EscalationHook func(ctx context.Context, e Escalation) error

const (
	DefaultHookTimeout   = 5 * time.Second
	DefaultHookQueueSize = 256
)

type escalationJob struct {
	ctx context.Context
	log *slog.Logger
	esc Escalation
}

// Engine is the single entry point of the triage core.
type Engine struct {
	store      *session.Store
	classifier *core.Classifier
	composer   *core.Composer
	hooks      []EscalationHook
	now        func() time.Time

	hookTimeout time.Duration
	queueSize   int

	mu        sync.RWMutex
	closed    bool
	queue     chan escalationJob
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Engine)

func WithClassifier(c *core.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

func WithTemplateBank(b *core.TemplateBank) Option {
	return func(e *Engine) { e.composer = core.NewComposer(b) }
}

func WithEscalationHook(h EscalationHook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithHookTimeout bounds every escalation hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) { e.hookTimeout = d }
}

// WithHookQueueSize sets how many escalations may wait for delivery before
// new ones are dropped.
func WithHookQueueSize(n int) Option {
	return func(e *Engine) { e.queueSize = n }
}

func NewEngine(store *session.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		classifier: core.NewDefaultClassifier(),
		composer:   core.NewComposer(nil),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = session.NewStore(session.Options{Now: e.now})
	}
	if e.hookTimeout <= 0 {
		e.hookTimeout = DefaultHookTimeout
	}
	if e.queueSize <= 0 {
		e.queueSize = DefaultHookQueueSize
	}
	if len(e.hooks) > 0 {
		e.queue = make(chan escalationJob, e.queueSize)
		e.done = make(chan struct{})
		go e.deliverLoop()
	}
	return e
}

// Close stops escalation delivery after the queued escalations have been
// handed to the hooks. Escalations raised afterwards are dropped.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		if e.queue != nil {
			close(e.queue)
		}
		e.mu.Unlock()
		if e.done != nil {
			<-e.done
		}
	})
}

// Handle classifies message, composes the reply and records the exchange. It
// always returns a well-formed response: internal faults yield FallbackResponse
// and leave the conversation's session as it was.
func (e *Engine) Handle(ctx context.Context, message, conversationID, senderID string) core.ComposedResponse {
	resp, _ := e.handle(ctx, message, conversationID, senderID)
	return resp
}

// Reply is Handle wrapped in the envelope transports relay outward.
func (e *Engine) Reply(ctx context.Context, message, conversationID, senderID string) core.OutboundMessage {
	resp, trend := e.handle(ctx, message, conversationID, senderID)
	return core.NewOutboundMessage(conversationID, resp, trend, e.now())
}

func (e *Engine) handle(ctx context.Context, message, conversationID, senderID string) (core.ComposedResponse, core.Trend) {
	ctx = observability.WithConversationID(ctx, conversationID)
	log := observability.LoggerFromContext(ctx).With("sender_id", senderID)

	var (
		resp  core.ComposedResponse
		trend core.Trend
	)
	err := e.store.Update(conversationID, func(cur core.Session) (core.Session, error) {
		r, err := e.respond(message, cur)
		if err != nil {
			return cur, err
		}

		now := e.now()
		next := cur.WithTurns(
			core.Turn{Role: core.RoleUser, Content: message, Timestamp: now},
			core.Turn{Role: core.RoleSystem, Content: r.Text, Timestamp: now},
		).WithClassification(r.Level(), now)
		next.LastSenderID = senderID

		resp, trend = r, next.Trend
		return next, nil
	})
	if err != nil {
		log.Error("falling back to neutral response", "error", err)
		return FallbackResponse(), ""
	}

	cls := resp.Classification
	if cls.Level.NeedsEmergencyContacts() {
		log.Warn("crisis alert",
			"level", cls.Level,
			"confidence", cls.Confidence,
			"keywords", cls.Keywords,
			"trend", trend)
		e.escalate(ctx, log, Escalation{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SenderID:       senderID,
			Level:          cls.Level,
			Confidence:     cls.Confidence,
			Keywords:       cls.Keywords,
			Phrases:        cls.Phrases,
			Trend:          trend,
			Message:        message,
			At:             e.now(),
		})
	} else {
		log.Info("message handled", "level", cls.Level, "trend", trend)
	}

	return resp, trend
}

// respond runs classification and composition, turning panics into faults.
func (e *Engine) respond(message string, cur core.Session) (core.ComposedResponse, error) {
	cls, err := e.classify(message)
	if err != nil {
		return core.ComposedResponse{}, err
	}
	return e.compose(message, cls, cur)
}

func (e *Engine) classify(message string) (cls core.ClassificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.ClassificationFault{Cause: panicError(r)}
		}
	}()
	return e.classifier.Classify(message), nil
}

func (e *Engine) compose(message string, cls core.ClassificationResult, cur core.Session) (resp core.ComposedResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.CompositionFault{Level: cls.Level, Cause: panicError(r)}
		}
	}()
	return e.composer.Compose(message, cls, cur)
}

func (e *Engine) escalate(ctx context.Context, log *slog.Logger, esc Escalation) {
	if len(e.hooks) == 0 {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		log.Warn("engine closed, escalation not delivered", "escalation_id", esc.ID)
		return
	}
	select {
	case e.queue <- escalationJob{ctx: context.WithoutCancel(ctx), log: log, esc: esc}:
	default:
		log.Error("escalation queue full, dropping escalation", "escalation_id", esc.ID, "level", esc.Level)
	}
}

func (e *Engine) deliverLoop() {
	defer close(e.done)
	for job := range e.queue {
		for i, h := range e.hooks {
			e.runHook(job, i, h)
		}
	}
}

func (e *Engine) runHook(job escalationJob, i int, h EscalationHook) {
	ctx, cancel := context.WithTimeout(job.ctx, e.hookTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			job.log.Error("escalation hook panicked", "hook", i, "panic", fmt.Sprint(r))
		}
	}()
	if err := h(ctx, job.esc); err != nil {
		job.log.Error("escalation hook failed", "hook", i, "escalation_id", job.esc.ID, "error", err)
	}
}

// Clear forgets everything about a conversation. Clearing twice is harmless.
func (e *Engine) Clear(ctx context.Context, conversationID string) {
	removed := e.store.Clear(conversationID)
	observability.LoggerFromContext(observability.WithConversationID(ctx, conversationID)).
		Info("session cleared", "existed", removed)
}

// Session returns a read-only snapshot of a conversation's state.
func (e *Engine) Session(conversationID string) (core.Session, bool) {
	return e.store.Snapshot(conversationID)
}

func panicError(r any) error {
	return fmt.Errorf("panic: %v", r)
}
