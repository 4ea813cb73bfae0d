package convo

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const (
	DefaultMaxMessages = 15
	DefaultTimeout     = 30 * time.Minute
	DefaultShards      = 16
)

// Config controls store construction. Zero values fall back to defaults.
type Config struct {
	MaxMessages int
	Timeout     time.Duration
	Shards      int
	Logger      *zap.Logger
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*record
}

// Store keeps a bounded, time-expiring message history per user.
//
// Keys are spread over independently locked shards so that traffic for
// different users does not contend on a single mutex. A record whose last
// write is older than the timeout is treated as absent by every read, and is
// removed either lazily by the read that notices it or by Sweep.
type Store struct {
	shards      []*shard
	maxMessages int
	timeout     time.Duration
	logger      *zap.Logger
	now         func() time.Time

	hookMu  sync.RWMutex
	onEvict func(userID string, reason EvictReason)
	onSweep func(removed int)
}

func NewStore(cfg Config) *Store {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	shards := make([]*shard, cfg.Shards)
	for i := range shards {
		shards[i] = &shard{records: make(map[string]*record)}
	}
	return &Store{
		shards:      shards,
		maxMessages: cfg.MaxMessages,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// SetEvictHook registers a callback invoked after a record is removed.
// The hook runs outside of any store lock.
func (s *Store) SetEvictHook(hook func(userID string, reason EvictReason)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onEvict = hook
}

// SetSweepHook registers a callback invoked once after each Sweep that
// removed at least one record, after the per-record evict hooks.
func (s *Store) SetSweepHook(hook func(removed int)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onSweep = hook
}

func (s *Store) Timeout() time.Duration { return s.timeout }

func (s *Store) MaxMessages() int { return s.maxMessages }

// AddMessage appends a message to the user's history, creating the record on
// first use. An empty displayName leaves the stored name untouched.
func (s *Store) AddMessage(userID string, role Role, content, displayName string) {
	s.appendMessages(userID, displayName, ChatTurn{Role: role, Content: content})
}

// AddExchange records a user message and the assistant's reply as one write,
// so concurrent exchanges for the same user never interleave.
func (s *Store) AddExchange(userID, userText, reply, displayName string) {
	s.appendMessages(userID, displayName,
		ChatTurn{Role: RoleUser, Content: userText},
		ChatTurn{Role: RoleAssistant, Content: reply},
	)
}

func (s *Store) appendMessages(userID, displayName string, turns ...ChatTurn) {
	sh := s.shardFor(userID)

	sh.mu.Lock()
	now := s.now()
	rec, ok := sh.records[userID]
	staleReplaced := ok && s.expired(rec, now)
	if !ok || staleReplaced {
		rec = &record{
			messages:     make([]Message, 0, s.maxMessages),
			lastActiveAt: now,
		}
		sh.records[userID] = rec
	}
	if now.After(rec.lastActiveAt) {
		rec.lastActiveAt = now
	}
	if displayName != "" {
		rec.displayName = displayName
	}
	for _, t := range turns {
		rec.messages = append(rec.messages, Message{
			Role:      t.Role,
			Content:   t.Content,
			Timestamp: now,
		})
	}
	if over := len(rec.messages) - s.maxMessages; over > 0 {
		// Copy down instead of reslicing so the backing array does not grow.
		n := copy(rec.messages, rec.messages[over:])
		clear(rec.messages[n:])
		rec.messages = rec.messages[:n]
	}
	sh.mu.Unlock()

	if staleReplaced {
		s.notify(userID, EvictLazy)
	}
}

// History returns a copy of the user's messages in insertion order, or nil
// when there is no live record.
func (s *Store) History(userID string) []Message {
	sh := s.shardFor(userID)
	now := s.now()

	sh.mu.RLock()
	rec, ok := sh.records[userID]
	if !ok {
		sh.mu.RUnlock()
		return nil
	}
	if !s.expired(rec, now) {
		out := cloneMessages(rec.messages)
		sh.mu.RUnlock()
		return out
	}
	sh.mu.RUnlock()

	if s.evictIfExpired(sh, userID, now) {
		s.notify(userID, EvictLazy)
		return nil
	}
	// A concurrent write refreshed the record between the two locks.
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if rec, ok := sh.records[userID]; ok {
		return cloneMessages(rec.messages)
	}
	return nil
}

// HasContext reports whether the user has a live, non-empty history.
func (s *Store) HasContext(userID string) bool {
	return len(s.History(userID)) > 0
}

// DisplayName returns the last known display name for a live record.
func (s *Store) DisplayName(userID string) (string, bool) {
	sh := s.shardFor(userID)
	now := s.now()
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.records[userID]
	if !ok || s.expired(rec, now) {
		return "", false
	}
	return rec.displayName, true
}

// ClearHistory removes the user's record. It is a no-op when absent.
func (s *Store) ClearHistory(userID string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	_, ok := sh.records[userID]
	delete(sh.records, userID)
	sh.mu.Unlock()

	if ok {
		s.notify(userID, EvictCleared)
	}
}

// Stats computes totals while holding every shard's read lock, so no record
// is counted twice or after a concurrent delete. Expired records that have
// not been removed yet still count towards the totals but not towards
// ActiveConversations.
func (s *Store) Stats() Stats {
	now := s.now()
	for _, sh := range s.shards {
		sh.mu.RLock()
	}
	var st Stats
	for _, sh := range s.shards {
		for _, rec := range sh.records {
			st.TotalUsers++
			st.TotalMessages += len(rec.messages)
			if !s.expired(rec, now) {
				st.ActiveConversations++
			}
		}
	}
	for i := len(s.shards) - 1; i >= 0; i-- {
		s.shards[i].mu.RUnlock()
	}
	st.MemoryUsage = fmt.Sprintf("%d users, %d messages", st.TotalUsers, st.TotalMessages)
	return st
}

func (s *Store) expired(rec *record, now time.Time) bool {
	return now.Sub(rec.lastActiveAt) > s.timeout
}

// evictIfExpired deletes the record only if it is still expired under the
// write lock.
func (s *Store) evictIfExpired(sh *shard, userID string, now time.Time) bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.records[userID]
	if !ok || !s.expired(rec, now) {
		return false
	}
	delete(sh.records, userID)
	return true
}

func (s *Store) shardFor(userID string) *shard {
	return s.shards[xxhash.Sum64String(userID)%uint64(len(s.shards))]
}

func (s *Store) notify(userID string, reason EvictReason) {
	s.hookMu.RLock()
	hook := s.onEvict
	s.hookMu.RUnlock()
	if hook != nil {
		hook(userID, reason)
	}
}

func cloneMessages(in []Message) []Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
