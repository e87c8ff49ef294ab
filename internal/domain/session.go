package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const MaxUserIDLen = 64

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

// SessionParams is the caller-supplied identity used to open a signaling
// channel. Immutable for the lifetime of one connection attempt.
type SessionParams struct {
	UserID       string `json:"userId"`
	ConsentToken string `json:"consentToken,omitempty"`
}

func (p SessionParams) Validate() error {
	if len(p.UserID) == 0 {
		return ErrUserIDEmpty
	}
	if len(p.UserID) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}

// Role identifies which participant produced a transcript entry.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// TranscriptEntry is one turn of conversation. Entries are immutable once
// created and are never reordered.
type TranscriptEntry struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// NewTranscriptEntry mints an entry with a role-prefixed unique id.
func NewTranscriptEntry(role Role, text string, at time.Time) TranscriptEntry {
	return TranscriptEntry{
		ID:        fmt.Sprintf("%s-%s", role, uuid.NewString()),
		Role:      role,
		Text:      text,
		Timestamp: at.UnixMilli(),
	}
}
