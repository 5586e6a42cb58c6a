package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recorder persists mapping submissions and translation attempts. Failures
// are reported to the caller, who logs them; auditing never blocks a user
// action.
type Recorder interface {
	MappingSubmitted(ctx context.Context, m *MappingSubmission) error
	TranslationAttempted(ctx context.Context, t *TranslationAttempt) error
}

// Nop discards every record.
type Nop struct{}

func (Nop) MappingSubmitted(context.Context, *MappingSubmission) error      { return nil }
func (Nop) TranslationAttempted(context.Context, *TranslationAttempt) error { return nil }

// Store writes records with gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) MappingSubmitted(ctx context.Context, m *MappingSubmission) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) TranslationAttempted(ctx context.Context, t *TranslationAttempt) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// Memory keeps records in process for tests and database-less runs.
type Memory struct {
	mu           sync.Mutex
	submissions  []MappingSubmission
	translations []TranslationAttempt
}

func (m *Memory) MappingSubmitted(_ context.Context, s *MappingSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.submissions = append(m.submissions, *s)
	return nil
}

func (m *Memory) TranslationAttempted(_ context.Context, t *TranslationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.translations = append(m.translations, *t)
	return nil
}

// Attempts returns a copy of the recorded translation attempts.
func (m *Memory) Attempts() []TranslationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TranslationAttempt(nil), m.translations...)
}

// MappingSubmissions returns a copy of the recorded submissions.
func (m *Memory) MappingSubmissions() []MappingSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MappingSubmission(nil), m.submissions...)
}
