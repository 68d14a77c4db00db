package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
)

// ErrPoolStopped is returned by Dispatch once Stop has been called.
var ErrPoolStopped = errors.New("worker pool stopped")

const defaultQueueSize = 100

type Task struct {
	ConversationID string
	Run            func()
}

// WorkerPool runs tasks on a fixed set of workers. Every task for a given
// conversation lands on the same worker, so a conversation's tasks run one at a
// time in dispatch order while different conversations proceed in parallel.
type WorkerPool struct {
	NumWorkers int
	queues     []chan Task
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
	log     *slog.Logger
}

func NewWorkerPool(n, queueSize int) *WorkerPool {
	if n < 1 {
		n = 1
	}
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}

	wp := &WorkerPool{
		NumWorkers: n,
		queues:     make([]chan Task, n),
		log:        observability.WithFields("component", "workers"),
	}

	for i := 0; i < n; i++ {
		ch := make(chan Task, queueSize)
		wp.queues[i] = ch

		wp.wg.Add(1)
		go func(id int, q chan Task) {
			defer wp.wg.Done()
			for task := range q {
				wp.run(id, task)
			}
		}(i, ch)
	}

	return wp
}

func (wp *WorkerPool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			wp.log.Error("task panicked",
				"worker", id,
				"conversation_id", task.ConversationID,
				"panic", fmt.Sprint(r),
				"stack_trace", string(debug.Stack()))
		}
	}()

	wp.log.Debug("processing task", "worker", id, "conversation_id", task.ConversationID)
	task.Run()
}

// Dispatch queues fn on the worker owning conversationID. It blocks while that
// worker's queue is full and gives up when ctx is done.
func (wp *WorkerPool) Dispatch(ctx context.Context, conversationID string, fn func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	q := wp.queues[wp.workerFor(conversationID)]
	select {
	case q <- Task{ConversationID: conversationID, Run: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) workerFor(conversationID string) int {
	return int(HashString(conversationID) % uint32(wp.NumWorkers))
}

// Stop refuses new work, drains queued tasks and waits for the workers to exit.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	for _, q := range wp.queues {
		close(q)
	}
	wp.mu.Unlock()

	wp.wg.Wait()
}

// HashString is 32-bit FNV-1a.
func HashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
