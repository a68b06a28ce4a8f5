package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/notewriter/internal/domain/selection"
)

// Session is one patient encounter being documented: the selection space
// plus bookkeeping.
type Session struct {
	ID        uuid.UUID        `json:"id"`
	Label     string           `json:"label,omitempty"`
	Space     *selection.Space `json:"space"`
	VersionID int              `json:"version_id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to a background writer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Space = s.Space.Clone()
	return &out
}

// SectionText is the composed text of one section.
type SectionText struct {
	Mode  string `json:"mode"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// MutationResult is returned after a batch of mutations is applied.
type MutationResult struct {
	SessionID uuid.UUID     `json:"session_id"`
	VersionID int           `json:"version_id"`
	Sections  []SectionText `json:"sections"`
	Note      string        `json:"note"`
}
