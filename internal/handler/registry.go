package handler

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/internal/domain/sale"
)

var (
	// ErrSessionNotFound is returned for unknown, expired or foreign builder
	// sessions.
	ErrSessionNotFound = errors.New("builder session not found")
	// ErrBusy is returned while another request is working on the session.
	ErrBusy = errors.New("builder session is busy")
	// ErrTooManySessions is returned when the open session limit is reached.
	ErrTooManySessions = errors.New("too many open builder sessions")
)

type desk struct {
	mu       sync.Mutex
	builder  *sale.Builder
	owner    string
	lastUsed time.Time
}

// Registry holds the open builder sessions. A session serves one request at
// a time; a concurrent request gets ErrBusy instead of waiting.
type Registry struct {
	mu    sync.Mutex
	desks map[uuid.UUID]*desk
	limit int

	now func() time.Time
}

// NewRegistry creates a registry holding at most limit sessions, or any
// number when limit is 0.
func NewRegistry(limit int) *Registry {
	return &Registry{
		desks: make(map[uuid.UUID]*desk),
		limit: limit,
		now:   time.Now,
	}
}

// Add stores b under a new session id owned by owner.
func (r *Registry) Add(b *sale.Builder, owner string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limit > 0 && len(r.desks) >= r.limit {
		return uuid.Nil, ErrTooManySessions
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "generate id")
	}
	r.desks[id] = &desk{builder: b, owner: owner, lastUsed: r.now()}
	return id, nil
}

// Acquire locks the session for the caller. release must be called once the
// request is done with the builder.
func (r *Registry) Acquire(id uuid.UUID, owner string) (b *sale.Builder, release func(), err error) {
	d := r.lookup(id)
	if d == nil {
		return nil, nil, ErrSessionNotFound
	}
	if !d.mu.TryLock() {
		return nil, nil, ErrBusy
	}
	// Swept between lookup and lock.
	if r.lookup(id) != d || d.owner != owner {
		d.mu.Unlock()
		return nil, nil, ErrSessionNotFound
	}
	return d.builder, func() {
		d.lastUsed = r.now()
		d.mu.Unlock()
	}, nil
}

// Remove discards a session.
func (r *Registry) Remove(id uuid.UUID, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.desks[id]
	if !ok || d.owner != owner {
		return ErrSessionNotFound
	}
	if !d.mu.TryLock() {
		return ErrBusy
	}
	delete(r.desks, id)
	d.mu.Unlock()
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.desks)
}

// Sweep drops sessions idle for longer than idle and returns how many were
// dropped. Busy sessions are skipped.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for id, d := range r.desks {
		if !d.mu.TryLock() {
			continue
		}
		if now.Sub(d.lastUsed) > idle {
			delete(r.desks, id)
			n++
		}
		d.mu.Unlock()
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) error {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				lg.Info("Dropped idle builder sessions", zap.Int("count", n), zap.Int("open", r.Len()))
			}
		}
	}
}

func (r *Registry) lookup(id uuid.UUID) *desk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.desks[id]
}
