package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MappingSubmission is one submitted column mapping.
type MappingSubmission struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	SessionID string         `gorm:"index;not null" json:"session_id"`
	Shapefile string         `json:"shapefile"`
	Rows      int            `json:"rows"`
	Fields    pq.StringArray `gorm:"type:text[]" json:"fields"`
	Columns   pq.StringArray `gorm:"type:text[]" json:"columns"`
	CreatedAt time.Time      `json:"created_at"`
}

func (MappingSubmission) TableName() string {
	return "pavelength.mapping_submissions"
}

// Outcome of a translation attempt.
const (
	OutcomeApplied  = "applied"
	OutcomeFallback = "fallback"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// TranslationAttempt is one natural-language query and what became of it.
type TranslationAttempt struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	SessionID  string         `gorm:"index;not null" json:"session_id"`
	Query      string         `gorm:"not null" json:"query"`
	Expression string         `json:"expression"`
	Outcome    string         `gorm:"index;not null" json:"outcome"`
	Error      string         `json:"error,omitempty"`
	Columns    pq.StringArray `gorm:"type:text[]" json:"columns"`
	Rows       int            `json:"rows"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (TranslationAttempt) TableName() string {
	return "pavelength.translation_attempts"
}
