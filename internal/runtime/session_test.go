package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

func TestWithSessionReleasesOnReturn(t *testing.T) {
	m := NewSessionManager(time.Minute, time.Minute, nil)

	var inside *Session
	err := m.WithSession(context.Background(), "test", 0, nil, func(s *Session) error {
		inside = s
		assert.True(t, s.IsValid())
		assert.Equal(t, 1, m.ActiveSessions())
		return nil
	})
	require.NoError(t, err)

	assert.False(t, inside.IsValid())
	assert.Equal(t, 0, m.ActiveSessions())
	assert.ErrorIs(t, inside.checkActive(), qmderr.ErrSessionReleased)
}

func TestWithSessionPropagatesFnError(t *testing.T) {
	m := NewSessionManager(time.Minute, time.Minute, nil)
	boom := errors.New("boom")

	err := m.WithSession(context.Background(), "test", 0, nil, func(*Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestWithSessionAbortsOnCancelToken(t *testing.T) {
	m := NewSessionManager(time.Minute, time.Minute, nil)
	cancel := make(chan struct{})

	err := m.WithSession(context.Background(), "test", 0, cancel, func(s *Session) error {
		close(cancel)
		require.Eventually(t, func() bool { return !s.IsValid() }, time.Second, 5*time.Millisecond)
		return s.checkActive()
	})
	assert.ErrorIs(t, err, qmderr.ErrSessionReleased)
}

func TestWithSessionAbortsOnMaxDuration(t *testing.T) {
	m := NewSessionManager(time.Minute, time.Minute, nil)

	err := m.WithSession(context.Background(), "test", 20*time.Millisecond, nil, func(s *Session) error {
		require.Eventually(t, func() bool { return !s.IsValid() }, time.Second, 5*time.Millisecond)
		return s.checkActive()
	})
	assert.ErrorIs(t, err, qmderr.ErrSessionReleased)
}

func TestIdleUnloadNeverFiresWhileBusy(t *testing.T) {
	var fired atomic.Int32
	m := NewSessionManager(20*time.Millisecond, time.Minute, func(context.Context) { fired.Add(1) })

	err := m.WithSession(context.Background(), "busy", 0, nil, func(*Session) error {
		end := m.beginOp()
		defer end()
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load(), "idle unload fired while a session and an op were live")
		return nil
	})
	require.NoError(t, err)

	// Once everything is released the timer may fire.
	require.Eventually(t, func() bool { return fired.Load() > 0 }, time.Second, 5*time.Millisecond)
}

func TestBeginOpTracksInFlight(t *testing.T) {
	m := NewSessionManager(time.Minute, time.Minute, nil)

	end1 := m.beginOp()
	end2 := m.beginOp()
	assert.Equal(t, int64(2), m.InFlight())
	assert.False(t, m.canUnload())

	end1()
	end2()
	assert.Equal(t, int64(0), m.InFlight())
	assert.True(t, m.canUnload())
}

func TestShutdownRejectsNewSessions(t *testing.T) {
	m := NewSessionManager(time.Minute, time.Minute, nil)
	m.Shutdown()

	err := m.WithSession(context.Background(), "late", 0, nil, func(*Session) error { return nil })
	require.Error(t, err)
	var qe *qmderr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, qmderr.KindCancelled, qe.Kind)
}
