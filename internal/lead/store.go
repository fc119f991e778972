// Package lead persists captured contact details to a JSON file. This is the
// write contract of the external lead collaborator; the orchestration loop
// itself only ever emits the eligibility signal.
package lead

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lead is one captured contact record.
type Lead struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	CapturedAt time.Time `json:"captured_at"`
}

// FileStore appends leads to a JSON array on disk. The file is rewritten
// whole under a mutex; lead volume is conversational, not transactional.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store writing to path. The file is created on the
// first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save appends a lead and returns the stored record.
func (s *FileStore) Save(sessionID, name, email, phone string) (*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	leads, err := s.load()
	if err != nil {
		return nil, err
	}

	rec := Lead{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Name:       name,
		Email:      email,
		Phone:      phone,
		CapturedAt: time.Now(),
	}
	leads = append(leads, rec)

	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode leads: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write leads file: %w", err)
	}
	return &rec, nil
}

// List returns all captured leads in capture order.
func (s *FileStore) List() ([]Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads the file. A missing or unreadable file yields an empty list;
// the next Save starts fresh.
func (s *FileStore) load() ([]Lead, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read leads file: %w", err)
	}

	var leads []Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, nil
	}
	return leads, nil
}
