package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionEvent is one entry in a session's audit trail
type SessionEvent struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	SessionID  string         `json:"session_id" db:"session_id"`
	UserID     string         `json:"user_id" db:"user_id"`
	EventType  string         `json:"event_type" db:"event_type"`
	FromStatus *SessionStatus `json:"from_status,omitempty" db:"from_status"`
	ToStatus   *SessionStatus `json:"to_status,omitempty" db:"to_status"`
	Message    string         `json:"message,omitempty" db:"message"`
	Metadata   JSONB          `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// JSONB type for JSON columns
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}
