// Package session holds per-conversation state: ordered message history and
// opportunistically extracted user attributes.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartfriend/mortgage-advisor/internal/model"
)

// ErrNotFound is returned for operations on an unknown session id.
var ErrNotFound = errors.New("session not found")

// Store is the session state abstraction. Implementations must allow
// concurrent access across distinct sessions and keep each session's message
// order sequentially consistent. Sessions live for the process lifetime;
// there is no deletion.
type Store interface {
	Create() string
	Exists(id string) bool
	Append(id string, msg model.Message) error
	History(id string) ([]model.Message, error)
	MergeUserData(id string, partial map[string]any) error
	UserData(id string) (map[string]any, error)
	CreatedAt(id string) (time.Time, error)
}

type record struct {
	messages  []model.Message
	userData  map[string]any
	createdAt time.Time
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*record)}
}

// Create allocates a new session and returns its opaque id.
func (s *MemoryStore) Create() string {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = &record{
		userData:  make(map[string]any),
		createdAt: time.Now(),
	}
	s.mu.Unlock()

	return id
}

// Exists reports whether the session id is known.
func (s *MemoryStore) Exists(id string) bool {
	s.mu.RLock()
	_, ok := s.sessions[id]
	s.mu.RUnlock()
	return ok
}

// Append adds a message to the end of the session's history.
func (s *MemoryStore) Append(id string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	rec.messages = append(rec.messages, msg)
	return nil
}

// History returns the session's messages in append order. The returned slice
// is a copy; callers may not mutate stored state through it.
func (s *MemoryStore) History(id string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.Message, len(rec.messages))
	copy(out, rec.messages)
	return out, nil
}

// MergeUserData overlays partial onto the session's extracted attributes.
func (s *MemoryStore) MergeUserData(id string, partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range partial {
		rec.userData[k] = v
	}
	return nil
}

// UserData returns a copy of the session's extracted attributes.
func (s *MemoryStore) UserData(id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]any, len(rec.userData))
	for k, v := range rec.userData {
		out[k] = v
	}
	return out, nil
}

// CreatedAt returns the session's immutable creation time.
func (s *MemoryStore) CreatedAt(id string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return rec.createdAt, nil
}
