package selection

import (
	"encoding/json"
	"fmt"

	"github.com/ehr/notewriter/internal/domain/catalog"
)

// Globals holds per-patient toggles that are not tied to a section.
type Globals struct {
	SubjAcute *bool `json:"subjAcute,omitempty"`
}

// Acute reports the acuity toggle, which defaults to true.
func (g Globals) Acute() bool {
	return g.SubjAcute == nil || *g.SubjAcute
}

func (g *Globals) SetAcute(on bool) {
	g.SubjAcute = &on
}

// Space is one patient's selection store: section buckets keyed by
// "mode:title" plus globals.
type Space struct {
	Sections map[string]*Bucket `json:"sections"`
	Globals  Globals            `json:"globals"`
}

// NewSpace returns an empty store.
func NewSpace() *Space {
	return &Space{Sections: map[string]*Bucket{}}
}

// Decode reads a persisted store, normalising legacy chip shapes.
func Decode(data []byte) (*Space, error) {
	s := NewSpace()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode selection space: %w", err)
	}
	if s.Sections == nil {
		s.Sections = map[string]*Bucket{}
	}
	for key, b := range s.Sections {
		if b == nil {
			delete(s.Sections, key)
			continue
		}
		b.ensure()
	}
	return s, nil
}

// Encode serialises the store for persistence.
func (s *Space) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode selection space: %w", err)
	}
	return data, nil
}

// Bucket returns the bucket for a section, creating it on first visit.
func (s *Space) Bucket(mode catalog.Mode, title string) *Bucket {
	if s.Sections == nil {
		s.Sections = map[string]*Bucket{}
	}
	key := catalog.Key(mode, title)
	b := s.Sections[key]
	if b == nil {
		b = NewBucket()
		s.Sections[key] = b
	}
	return b
}

// Peek returns the bucket for a section without creating it. The result may
// be nil; Bucket getters are nil-safe.
func (s *Space) Peek(mode catalog.Mode, title string) *Bucket {
	if s == nil {
		return nil
	}
	return s.Sections[catalog.Key(mode, title)]
}

// ClearSection resets one section to empty.
func (s *Space) ClearSection(mode catalog.Mode, title string) {
	if s.Sections == nil {
		s.Sections = map[string]*Bucket{}
	}
	s.Sections[catalog.Key(mode, title)] = NewBucket()
}

// ClearAll drops every section bucket. Globals are kept.
func (s *Space) ClearAll() {
	s.Sections = map[string]*Bucket{}
}

// Clone returns a deep copy.
func (s *Space) Clone() *Space {
	if s == nil {
		return nil
	}
	out := NewSpace()
	for k, b := range s.Sections {
		out.Sections[k] = b.Clone()
	}
	if s.Globals.SubjAcute != nil {
		out.Globals.SetAcute(*s.Globals.SubjAcute)
	}
	return out
}
