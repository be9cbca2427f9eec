package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// SessionState is the lifecycle state of a Session.
type SessionState string

const (
	SessionActive   SessionState = "Active"
	SessionReleased SessionState = "Released"
	SessionAborted  SessionState = "Aborted"
)

// Session is a reference-counted lease on the Model Runtime, guaranteeing
// its resources are not unloaded mid-use. A session moves from Active to
// Released on normal completion, or to Aborted when its cancel token
// fires, its max duration expires, or the runtime shuts down; any
// operation against a non-Active session fails with
// qmderr.ErrSessionReleased.
type Session struct {
	Name  string
	mu    sync.Mutex
	state SessionState
	mgr   *SessionManager
	timer *time.Timer
}

// IsValid reports whether the session may still be used.
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SessionActive
}

// checkActive returns qmderr.ErrSessionReleased if the session is not
// Active; every Provider call routed through a session must call this
// first.
func (s *Session) checkActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return qmderr.ErrSessionReleased
	}
	return nil
}

func (s *Session) release(final SessionState) {
	s.mu.Lock()
	if s.state != SessionActive {
		s.mu.Unlock()
		return
	}
	s.state = final
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.mgr.onSessionEnded()
}

// SessionManager bounds concurrent Model Runtime use: reference-counted sessions, an in-flight operation counter, and an
// idle-unload timer that fires only once both counters are zero for the
// configured inactivity window.
type SessionManager struct {
	idleUnload  time.Duration
	maxDuration time.Duration
	onIdle      func(ctx context.Context)

	mu             sync.Mutex
	activeSessions int
	inFlight       int64 // atomic
	idleTimer      *time.Timer
	shuttingDown   bool
}

// NewSessionManager constructs a manager with the given idle-unload window
// (default 5 min) and default max session duration (default 10 min).
// onIdle is invoked
// when the runtime should dispose its per-context resources; it must not
// block indefinitely.
func NewSessionManager(idleUnload, maxDuration time.Duration, onIdle func(ctx context.Context)) *SessionManager {
	if idleUnload <= 0 {
		idleUnload = 5 * time.Minute
	}
	if maxDuration <= 0 {
		maxDuration = 10 * time.Minute
	}
	return &SessionManager{idleUnload: idleUnload, maxDuration: maxDuration, onIdle: onIdle}
}

// WithSession acquires a session lease, invokes fn, and always releases —
// normally to Released, or to Aborted if cancelToken fires or maxDuration
// (falling back to the manager's default when <= 0) expires first.
func (m *SessionManager) WithSession(ctx context.Context, name string, maxDuration time.Duration, cancelToken <-chan struct{}, fn func(*Session) error) error {
	if maxDuration <= 0 {
		maxDuration = m.maxDuration
	}

	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return qmderr.Cancelled(qmderr.CodeShutdown, "runtime is shutting down")
	}
	m.activeSessions++
	m.cancelIdleTimerLocked()
	m.mu.Unlock()

	sess := &Session{Name: name, state: SessionActive, mgr: m}

	aborted := make(chan struct{})
	sess.timer = time.AfterFunc(maxDuration, func() {
		sess.release(SessionAborted)
		close(aborted)
	})

	done := make(chan struct{})
	go func() {
		select {
		case <-cancelToken:
			sess.release(SessionAborted)
		case <-ctx.Done():
			sess.release(SessionAborted)
		case <-done:
		case <-aborted:
		}
	}()

	err := fn(sess)
	close(done)
	sess.release(SessionReleased)
	return err
}

// beginOp increments the in-flight operation counter; callers must call
// the returned func when the operation completes.
func (m *SessionManager) beginOp() func() {
	atomic.AddInt64(&m.inFlight, 1)
	return func() {
		atomic.AddInt64(&m.inFlight, -1)
		m.maybeScheduleIdle()
	}
}

func (m *SessionManager) onSessionEnded() {
	m.mu.Lock()
	if m.activeSessions > 0 {
		m.activeSessions--
	}
	m.mu.Unlock()
	m.maybeScheduleIdle()
}

// canUnload reports whether the runtime currently has zero active
// sessions and zero in-flight operations, the idle-unload handler's
// first check.
func (m *SessionManager) canUnload() bool {
	m.mu.Lock()
	active := m.activeSessions
	m.mu.Unlock()
	return active == 0 && atomic.LoadInt64(&m.inFlight) == 0
}

func (m *SessionManager) maybeScheduleIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown || m.onIdle == nil {
		return
	}
	m.cancelIdleTimerLocked()
	m.idleTimer = time.AfterFunc(m.idleUnload, m.fireIdle)
}

func (m *SessionManager) cancelIdleTimerLocked() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
}

// fireIdle consults canUnload() first; if the runtime became busy again
// in the meantime it reschedules and returns without touching state.
func (m *SessionManager) fireIdle() {
	if !m.canUnload() {
		m.maybeScheduleIdle()
		return
	}
	m.onIdle(context.Background())
}

// ActiveSessions returns the current reference count, for tests.
func (m *SessionManager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSessions
}

// InFlight returns the current in-flight operation count, for tests.
func (m *SessionManager) InFlight() int64 {
	return atomic.LoadInt64(&m.inFlight)
}

// Shutdown aborts the idle timer and marks the manager as shutting down;
// subsequent WithSession calls fail fast.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	m.shuttingDown = true
	m.cancelIdleTimerLocked()
	m.mu.Unlock()
}
