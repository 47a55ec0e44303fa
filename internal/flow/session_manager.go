package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/util"
)

// ErrSessionNotFound is returned for operations on an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// SessionManager keeps scripted conversations in a SessionStore and serializes turns per session.
type SessionManager struct {
	store      SessionStore
	script     Script
	submitter  Submitter
	opts       []ControllerOption
	timer      Timer
	locksMu    sync.Mutex
	locks      map[string]*sessionLock
	janitorMu  sync.Mutex
	janitorID  string
	janitorOff bool
}

// NewSessionManager creates a SessionManager. The controller options apply to every session.
func NewSessionManager(st SessionStore, script Script, submitter Submitter, opts ...ControllerOption) *SessionManager {
	slog.Debug("Creating SessionManager", "steps", len(script.Steps))
	return &SessionManager{
		store:     st,
		script:    script,
		submitter: submitter,
		opts:      opts,
		timer:     NewSimpleTimer(),
		locks:     make(map[string]*sessionLock),
	}
}

// Script returns the script every session follows.
func (m *SessionManager) Script() Script {
	return m.script
}

// sessionLock serializes turns on one session. refs counts holders and waiters so the entry
// is only dropped once nobody can still be queued on mu.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (m *SessionManager) lock(id string) func() {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}

// Start opens a new session, replacing any existing session with the same ID.
// An empty id gets a generated one.
func (m *SessionManager) Start(ctx context.Context, id, channel string) (models.ChatSession, error) {
	if id == "" {
		id = util.GenerateSessionID()
	}
	unlock := m.lock(id)
	defer unlock()

	opts := append(append([]ControllerOption(nil), m.opts...), WithSessionID(id), WithChannel(channel))
	c := NewController(m.script, m.submitter, opts...)
	snap := c.Snapshot()
	if err := m.store.SaveSession(ctx, snap); err != nil {
		slog.Error("SessionManager.Start: save failed", "error", err, "sessionID", id)
		return models.ChatSession{}, fmt.Errorf("failed to save session %s: %w", id, err)
	}
	slog.Info("SessionManager.Start: session started", "sessionID", id, "channel", channel)
	return snap, nil
}

// Get returns the stored snapshot of a session.
func (m *SessionManager) Get(ctx context.Context, id string) (models.ChatSession, error) {
	snap, err := m.store.GetSession(ctx, id)
	if err != nil {
		slog.Error("SessionManager.Get: load failed", "error", err, "sessionID", id)
		return models.ChatSession{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if snap == nil {
		return models.ChatSession{}, ErrSessionNotFound
	}
	return *snap, nil
}

// Handle feeds one answer to a session and persists the result of accepted turns.
func (m *SessionManager) Handle(ctx context.Context, id, input string) (Turn, error) {
	unlock := m.lock(id)
	defer unlock()

	snap, err := m.store.GetSession(ctx, id)
	if err != nil {
		slog.Error("SessionManager.Handle: load failed", "error", err, "sessionID", id)
		return Turn{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if snap == nil {
		return Turn{}, ErrSessionNotFound
	}

	c, err := RestoreController(m.script, m.submitter, *snap, m.opts...)
	if err != nil {
		slog.Error("SessionManager.Handle: restore failed", "error", err, "sessionID", id)
		return Turn{}, err
	}
	if snap.State == models.SessionStateSubmitting {
		// The interrupted submission's outcome is unknown; report the failure message instead
		// of applying input.
		transcript := c.Transcript()
		turn := Turn{
			Messages:         transcript[len(transcript)-1:],
			State:            c.State(),
			SubmissionFailed: true,
		}
		if err := m.store.SaveSession(ctx, c.Snapshot()); err != nil {
			slog.Error("SessionManager.Handle: save failed", "error", err, "sessionID", id)
		}
		return turn, nil
	}

	turn, err := c.Handle(ctx, input)
	if err != nil {
		return turn, err
	}
	if saveErr := m.store.SaveSession(ctx, c.Snapshot()); saveErr != nil {
		// The turn already happened (possibly including a stored submission); report it anyway.
		slog.Error("SessionManager.Handle: save failed", "error", saveErr, "sessionID", id)
	}
	return turn, err
}

// End discards a session and its transcript.
func (m *SessionManager) End(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()

	if err := m.store.DeleteSession(ctx, id); err != nil {
		slog.Error("SessionManager.End: delete failed", "error", err, "sessionID", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	slog.Debug("SessionManager.End: session ended", "sessionID", id)
	return nil
}

// SweepExpired deletes sessions idle for longer than ttl and returns how many were removed.
func (m *SessionManager) SweepExpired(ctx context.Context, ttl time.Duration) (int, error) {
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, s := range sessions {
		if s.UpdatedAt.After(cutoff) {
			continue
		}
		if err := m.End(ctx, s.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		slog.Info("SessionManager.SweepExpired: removed idle sessions", "count", removed, "ttl", ttl)
	}
	return removed, nil
}

// StartJanitor sweeps idle sessions every interval until StopJanitor is called.
func (m *SessionManager) StartJanitor(ctx context.Context, ttl, interval time.Duration) error {
	if ttl <= 0 || interval <= 0 {
		return fmt.Errorf("janitor ttl and interval must be positive")
	}
	m.janitorMu.Lock()
	m.janitorOff = false
	m.janitorMu.Unlock()
	return m.scheduleSweep(ctx, ttl, interval)
}

func (m *SessionManager) scheduleSweep(ctx context.Context, ttl, interval time.Duration) error {
	m.janitorMu.Lock()
	defer m.janitorMu.Unlock()
	if m.janitorOff {
		return nil
	}
	id, err := m.timer.ScheduleAfter(interval, func() {
		if _, err := m.SweepExpired(ctx, ttl); err != nil {
			slog.Error("SessionManager janitor sweep failed", "error", err)
		}
		if err := m.scheduleSweep(ctx, ttl, interval); err != nil {
			slog.Error("SessionManager janitor reschedule failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	m.janitorID = id
	return nil
}

// StopJanitor stops the idle-session sweeper.
func (m *SessionManager) StopJanitor() {
	m.janitorMu.Lock()
	defer m.janitorMu.Unlock()
	m.janitorOff = true
	if m.janitorID != "" {
		_ = m.timer.Cancel(m.janitorID)
		m.janitorID = ""
	}
}

// Close stops the janitor and any pending timers.
func (m *SessionManager) Close() {
	m.StopJanitor()
	m.timer.Stop()
}
