// Package store provides storage backends for LeadPipe.
//
// It persists contact submissions and chat session snapshots in memory, SQLite or PostgreSQL.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Store is the persistence contract shared by every backend.
// Lookups of missing records return nil without error.
type Store interface {
	InsertContact(ctx context.Context, sub models.Submission) (models.Contact, error)
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	ListContacts(ctx context.Context) ([]models.Contact, error)
	SaveSession(ctx context.Context, session models.ChatSession) error
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]models.ChatSession, error)
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // database connection string or SQLite file path
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite database path or DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns the database/sql driver name for a DSN: "postgres" or "sqlite3".
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") ||
		strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// New opens the backend selected by the configured DSN, or an in-memory store when no DSN is set.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("No database DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// InMemoryStore is a map-backed store for tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	contacts map[string]models.Contact
	order    []string
	sessions map[string]models.ChatSession
	now      func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		contacts: make(map[string]models.Contact),
		sessions: make(map[string]models.ChatSession),
		now:      time.Now,
	}
}

func (s *InMemoryStore) InsertContact(_ context.Context, sub models.Submission) (models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.Contact{ID: newContactID(), Submission: sub, CreatedAt: s.now().UTC()}
	s.contacts[c.ID] = c
	s.order = append(s.order, c.ID)
	slog.Debug("InMemoryStore InsertContact succeeded", "id", c.ID)
	return c, nil
}

func (s *InMemoryStore) GetContact(_ context.Context, id string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListContacts returns contacts in insertion order.
func (s *InMemoryStore) ListContacts(_ context.Context) ([]models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Contact, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.contacts[id])
	}
	return out, nil
}

func (s *InMemoryStore) SaveSession(_ context.Context, session models.ChatSession) error {
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *InMemoryStore) GetSession(_ context.Context, id string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	session = cloneSession(session)
	return &session, nil
}

func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// ListSessions returns sessions ordered by last update, oldest first.
func (s *InMemoryStore) ListSessions(_ context.Context) ([]models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, cloneSession(session))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// cloneSession copies the map and slice of a snapshot so callers cannot alias stored state.
func cloneSession(session models.ChatSession) models.ChatSession {
	if session.Answers != nil {
		answers := make(map[models.Field]string, len(session.Answers))
		for k, v := range session.Answers {
			answers[k] = v
		}
		session.Answers = answers
	}
	session.Transcript = append([]models.TranscriptMessage(nil), session.Transcript...)
	return session
}
