// Package engine drains the action queue against the remote API when the
// device is online. It is the sole owner of queue status transitions and of
// the identity reconciliation map: screens append actions and write
// optimistic mirror records, the engine does everything else.
package engine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/netmon"
	"github.com/renaud/comptoir/internal/remote"
)

// ErrOrderingViolation signals that an action referenced an identity whose
// resolution is impossible under sequence ordering. It indicates a broken
// invariant, not a transient condition, so the drain halts rather than send
// a dangling reference.
var ErrOrderingViolation = errors.New("ordering violation: dependency referenced before resolvable")

// Remote is the slice of the server API the engine needs. *remote.Client
// satisfies it; tests substitute an in-memory fake.
type Remote interface {
	Create(kind models.EntityKind, clientRef string, payload json.RawMessage) (*remote.CreateResult, error)
	Update(kind models.EntityKind, id string, payload json.RawMessage) error
	Delete(kind models.EntityKind, id string) error
	List(kind models.EntityKind) ([]remote.Entity, error)
	LookupByRef(kind models.EntityKind, clientRef string) (*remote.Entity, error)
}

// Config tunes the engine. Zero values select defaults.
type Config struct {
	RetryCeiling int                // transient attempts before terminal failure (default 5)
	BackoffBase  time.Duration      // default 2s
	BackoffMax   time.Duration      // default 5m
	Online       func() bool        // connectivity check; default always online
	Now          func() time.Time   // clock; default time.Now
}

// Engine coordinates drains. At most one drain pass runs at a time; a
// trigger arriving mid-drain sets a re-run flag consumed when the current
// pass finishes instead of starting a concurrent one.
type Engine struct {
	db     *db.DB
	remote Remote

	retryCeiling int
	backoffBase  time.Duration
	backoffMax   time.Duration
	online       func() bool
	now          func() time.Time

	mu       sync.Mutex
	draining bool
	rerun    bool
}

// New creates an engine over the given store and remote API.
func New(database *db.DB, rem Remote, cfg Config) *Engine {
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Minute
	}
	if cfg.Online == nil {
		cfg.Online = func() bool { return true }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		db:           database,
		remote:       rem,
		retryCeiling: cfg.RetryCeiling,
		backoffBase:  cfg.BackoffBase,
		backoffMax:   cfg.BackoffMax,
		online:       cfg.Online,
		now:          cfg.Now,
	}
}

// Report summarizes a drain.
type Report struct {
	Processed int   // actions examined
	Completed int   // confirmed by the server
	Requeued  int   // transient failures scheduled for retry
	Failed    int   // new terminal failures
	Cascaded  int64 // dependents failed alongside a terminal failure
	Paused    bool  // pass stopped early (offline, backoff window, transient failure)
	Halted    bool  // pass stopped on a broken ordering invariant
	Deferred  bool  // a drain was already running; re-run was requested
}

func (r *Report) add(o Report) {
	r.Processed += o.Processed
	r.Completed += o.Completed
	r.Requeued += o.Requeued
	r.Failed += o.Failed
	r.Cascaded += o.Cascaded
	r.Paused = o.Paused
	r.Halted = o.Halted
}

// Drain runs drain passes until the queue has no due work, a transient
// failure pauses it, or an ordering violation halts it. Re-entrant calls do
// not start a second drain: they request a re-run and return immediately
// with Deferred set.
func (e *Engine) Drain() (Report, error) {
	e.mu.Lock()
	if e.draining {
		e.rerun = true
		e.mu.Unlock()
		return Report{Deferred: true}, nil
	}
	e.draining = true
	e.mu.Unlock()

	var total Report
	for {
		rep, err := e.drainPass()
		total.add(rep)
		if err != nil {
			e.finish()
			return total, err
		}

		e.mu.Lock()
		again := e.rerun && !rep.Paused && !rep.Halted
		e.rerun = false
		if !again {
			e.draining = false
			e.mu.Unlock()
			return total, nil
		}
		e.mu.Unlock()
	}
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.draining = false
	e.rerun = false
	e.mu.Unlock()
}

// Watch consumes connectivity transitions and triggers a drain on every
// online transition until stop is closed.
func (e *Engine) Watch(events <-chan netmon.Event, stop <-chan struct{}) {
	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Online {
					if _, err := e.Drain(); err != nil {
						slog.Warn("drain after online transition", "err", err)
					}
				}
			case <-stop:
				return
			}
		}
	}()
}

// Backoff returns the retry delay after the given attempt count. Pure
// function: exponential in the attempt number, capped.
func (e *Engine) Backoff(attempt int) time.Duration {
	d := e.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= e.backoffMax {
			return e.backoffMax
		}
	}
	if d > e.backoffMax {
		return e.backoffMax
	}
	return d
}
