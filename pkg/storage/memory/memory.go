package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"posemaster/pkg/metrics"
	"posemaster/pkg/storage"
)

// TierName is reported by Name and used as the "tier" metric label.
const TierName = "session"

type session struct {
	values   map[string]string
	used     int64
	deadline time.Time
	timer    *time.Timer
}

// Tier is the fast, quota-bounded storage tier. Every scope is one browser
// session with its own quota; a scope left idle for the TTL is dropped along
// with everything it holds.
type Tier struct {
	mu       sync.Mutex
	sessions map[string]*session
	capacity int64
	ttl      time.Duration
	reg      *metrics.Registry
	closed   bool
}

var (
	_ storage.Tier          = (*Tier)(nil)
	_ storage.QuotaReporter = (*Tier)(nil)
)

// New creates an empty tier. capacity is the per-session quota in bytes;
// ttl <= 0 keeps sessions until Clear or Close.
func New(capacity int64, ttl time.Duration, reg *metrics.Registry) *Tier {
	return &Tier{
		sessions: make(map[string]*session),
		capacity: capacity,
		ttl:      ttl,
		reg:      reg,
	}
}

func (t *Tier) Name() string { return TierName }

// Get returns the value stored for key in scope.
func (t *Tier) Get(ctx context.Context, scope, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", storage.ErrClosed
	}

	s, ok := t.sessions[scope]
	if !ok {
		return "", storage.ErrNotFound
	}
	t.touch(scope, s)
	v, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

// Put stores value under key. When the session quota cannot hold the new
// value the call fails with storage.ErrCapacityExceeded and nothing changes.
func (t *Tier) Put(ctx context.Context, scope, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return storage.ErrClosed
	}

	var used, prev int64
	if s, ok := t.sessions[scope]; ok {
		used = s.used
		if old, ok := s.values[key]; ok {
			prev = storage.EntrySize(key, old)
		}
	}
	size := storage.EntrySize(key, value)
	// A rejected write must not open a session or extend its deadline.
	if used-prev+size > t.capacity {
		return storage.ErrCapacityExceeded
	}

	s := t.session(scope)
	s.values[key] = value
	s.used += size - prev
	return nil
}

// Delete removes key from scope.
func (t *Tier) Delete(ctx context.Context, scope, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return storage.ErrClosed
	}

	s, ok := t.sessions[scope]
	if !ok {
		return nil
	}
	if old, ok := s.values[key]; ok {
		s.used -= storage.EntrySize(key, old)
		delete(s.values, key)
	}
	t.touch(scope, s)
	return nil
}

// Available reports the bytes scope may still store.
func (t *Tier) Available(scope string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[scope]; ok {
		return t.capacity - s.used
	}
	return t.capacity
}

// Clear ends the session, dropping all its values and markers.
func (t *Tier) Clear(ctx context.Context, scope string) {
	t.mu.Lock()
	s, ok := t.sessions[scope]
	if ok {
		t.drop(scope, s)
	}
	t.mu.Unlock()

	if ok {
		log.Ctx(ctx).Info().Str("session_id", scope).Int64("bytes", s.used).Msg("session storage cleared")
	}
}

// Sessions returns the number of live sessions.
func (t *Tier) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Close stops expiry timers and releases all sessions.
func (t *Tier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for scope, s := range t.sessions {
		t.drop(scope, s)
	}
	t.closed = true
	return nil
}

// session returns the session for scope, creating it if needed.
// Caller holds t.mu.
func (t *Tier) session(scope string) *session {
	s, ok := t.sessions[scope]
	if !ok {
		s = &session{values: make(map[string]string)}
		t.sessions[scope] = s
	}
	t.touch(scope, s)
	return s
}

// touch pushes the session deadline forward. Caller holds t.mu.
func (t *Tier) touch(scope string, s *session) {
	if t.ttl <= 0 {
		return
	}
	s.deadline = time.Now().Add(t.ttl)
	if s.timer == nil {
		s.timer = time.AfterFunc(t.ttl, func() { t.expire(scope, s) })
		return
	}
	s.timer.Reset(t.ttl)
}

// drop removes the session and stops its timer. Caller holds t.mu.
func (t *Tier) drop(scope string, s *session) {
	if s.timer != nil {
		s.timer.Stop()
	}
	delete(t.sessions, scope)
}

func (t *Tier) expire(scope string, s *session) {
	t.mu.Lock()
	if t.sessions[scope] != s {
		t.mu.Unlock()
		return
	}
	// The timer may fire while an access is waiting on the lock.
	if remaining := time.Until(s.deadline); remaining > 0 {
		s.timer.Reset(remaining)
		t.mu.Unlock()
		return
	}
	t.drop(scope, s)
	used, keys := s.used, len(s.values)
	t.mu.Unlock()

	// Background expiry; no request context.
	ctx := context.Background()
	log.Info().Str("session_id", scope).Int("keys", keys).Int64("bytes", used).Msg("session storage expired")
	t.reg.Inc(ctx, metrics.SessionsExpired, map[string]string{}, 1)
}
