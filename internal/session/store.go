package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/workers"
)

const (
	DefaultShards      = 32
	DefaultTTL         = 30 * time.Minute
	DefaultMaxSessions = 10000
)

// Options tunes a Store. Zero values pick the defaults.
type Options struct {
	Shards int
	// TTL is the idle time after which a session is dropped. Negative disables expiry.
	TTL time.Duration
	// MaxSessions bounds the total number of sessions. The bound is split
	// across shards, so eviction drops the least recently used session of the
	// full shard, not of the whole store. Shards is lowered to MaxSessions when
	// larger. Negative disables the bound.
	MaxSessions int
	Now         func() time.Time
}

type entry struct {
	id         string
	session    core.Session
	lastAccess time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	limit   int        // <= 0 means unbounded
}

// Store owns every conversation session. Conversations are spread over shards by
// hash, and each shard has its own lock, so work on one conversation never waits
// for a conversation held by another shard.
type Store struct {
	shards []*shard
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(opts Options) *Store {
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSessions == 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.MaxSessions > 0 && opts.Shards > opts.MaxSessions {
		opts.Shards = opts.MaxSessions
	}

	s := &Store{
		shards: make([]*shard, opts.Shards),
		ttl:    opts.TTL,
		now:    opts.Now,
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			entries: make(map[string]*list.Element),
			lru:     list.New(),
			limit:   shardCapacity(opts.MaxSessions, opts.Shards, i),
		}
	}
	return s
}

// shardCapacity splits total over n shards so the capacities sum to total exactly.
func shardCapacity(total, n, i int) int {
	if total <= 0 {
		return -1
	}
	c := total / n
	if i < total%n {
		c++
	}
	return c
}

func (s *Store) shardFor(conversationID string) *shard {
	return s.shards[workers.HashString(conversationID)%uint32(len(s.shards))]
}

// GetOrCreate returns a snapshot of the session, creating an empty one if needed.
func (s *Store) GetOrCreate(conversationID string) core.Session {
	sh := s.shardFor(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	return s.load(sh, conversationID).session.Clone()
}

// Snapshot returns the session without creating it.
func (s *Store) Snapshot(conversationID string) (core.Session, bool) {
	sh := s.shardFor(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.entries[conversationID]
	if !ok {
		return core.Session{}, false
	}
	e := el.Value.(*entry)
	if s.expired(e, s.now()) {
		s.remove(sh, el)
		return core.Session{}, false
	}
	return e.session.Clone(), true
}

// Update runs fn with the current session and stores its result. fn runs while
// the conversation is locked, so updates to one conversation are serialized.
// When fn returns an error or panics the stored session is left unchanged.
func (s *Store) Update(conversationID string, fn func(core.Session) (core.Session, error)) error {
	sh := s.shardFor(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := s.load(sh, conversationID)
	next, err := fn(e.session.Clone())
	if err != nil {
		return err
	}
	e.session = next
	return nil
}

// AppendTurns appends a user turn and the system turn that answered it.
func (s *Store) AppendTurns(conversationID string, user, system core.Turn) {
	_ = s.Update(conversationID, func(cur core.Session) (core.Session, error) {
		return cur.WithTurns(user, system), nil
	})
}

// RecordClassification folds level into the escalation history and recomputes the trend.
func (s *Store) RecordClassification(conversationID string, level core.Level, at time.Time) {
	_ = s.Update(conversationID, func(cur core.Session) (core.Session, error) {
		return cur.WithClassification(level, at), nil
	})
}

// Clear removes the session. Clearing an unknown conversation is a no-op.
func (s *Store) Clear(conversationID string) bool {
	sh := s.shardFor(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.entries[conversationID]
	if !ok {
		return false
	}
	s.remove(sh, el)
	return true
}

// Len counts stored sessions, including idle ones not yet swept.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// EvictExpired drops every session idle for longer than the TTL.
func (s *Store) EvictExpired() int {
	if s.ttl < 0 {
		return 0
	}

	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		// Oldest entries sit at the back of the list.
		for el := sh.lru.Back(); el != nil; {
			e := el.Value.(*entry)
			if !s.expired(e, now) {
				break
			}
			prev := el.Prev()
			s.remove(sh, el)
			removed++
			el = prev
		}
		sh.mu.Unlock()
	}
	return removed
}

// load must be called with sh.mu held.
func (s *Store) load(sh *shard, conversationID string) *entry {
	now := s.now()

	if el, ok := sh.entries[conversationID]; ok {
		e := el.Value.(*entry)
		if !s.expired(e, now) {
			e.lastAccess = now
			sh.lru.MoveToFront(el)
			return e
		}
		s.remove(sh, el)
	}

	if sh.limit > 0 {
		for sh.lru.Len() >= sh.limit {
			s.remove(sh, sh.lru.Back())
		}
	}

	e := &entry{
		id:         conversationID,
		session:    core.NewSession(conversationID, now),
		lastAccess: now,
	}
	sh.entries[conversationID] = sh.lru.PushFront(e)
	return e
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastAccess) > s.ttl
}

func (s *Store) remove(sh *shard, el *list.Element) {
	e := sh.lru.Remove(el).(*entry)
	delete(sh.entries, e.id)
}
