package audittrail

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/notewriter/internal/platform/middleware"
)

// DefaultCapacity bounds how many entries a Trail keeps.
const DefaultCapacity = 10000

// Entry is one recorded session access.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id"`
	UserRoles  []string  `json:"user_roles,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Action     string    `json:"action"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status"`
	SourceIP   string    `json:"source_ip"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Outcome classifies the response status.
func (e *Entry) Outcome() string {
	if e.StatusCode >= 400 {
		return "failure"
	}
	return "success"
}

// SearchParams filters, paginates, and sorts a search.
type SearchParams struct {
	UserID    string
	SessionID string
	Action    string
	Outcome   string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// SearchResult is one page of matching entries.
type SearchResult struct {
	Entries []*Entry `json:"entries"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Summary aggregates matching entries.
type Summary struct {
	TotalEntries int            `json:"total_entries"`
	ByAction     map[string]int `json:"by_action"`
	ByOutcome    map[string]int `json:"by_outcome"`
	ByUser       map[string]int `json:"by_user"`
	BySession    map[string]int `json:"by_session"`
	First        *time.Time     `json:"first,omitempty"`
	Last         *time.Time     `json:"last,omitempty"`
}

// Trail is an in-process, bounded audit log of session access. Once full,
// the oldest entries are dropped.
type Trail struct {
	mu       sync.RWMutex
	entries  []*Entry
	capacity int
	now      func() time.Time
}

func New(capacity int) *Trail {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Trail{capacity: capacity, now: time.Now}
}

// RecordAccess implements middleware.AuditRecorder.
func (t *Trail) RecordAccess(ae middleware.AuditEntry) error {
	e := &Entry{
		ID:         uuid.NewString(),
		Timestamp:  ae.Timestamp,
		UserID:     ae.UserID,
		UserRoles:  ae.UserRoles,
		SessionID:  ae.SessionID,
		Action:     ae.Action,
		Method:     ae.Method,
		Path:       ae.Path,
		StatusCode: ae.StatusCode,
		SourceIP:   ae.IPAddress,
		UserAgent:  ae.UserAgent,
		RequestID:  ae.RequestID,
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) >= t.capacity {
		drop := len(t.entries) - t.capacity + 1
		t.entries = append(t.entries[:0:0], t.entries[drop:]...)
	}
	t.entries = append(t.entries, e)
	return nil
}

// Len returns the number of retained entries.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func applyDefaults(p *SearchParams) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.SortBy == "" {
		p.SortBy = "timestamp"
	}
	if p.SortOrder == "" {
		p.SortOrder = "desc"
	}
}

func matches(e *Entry, p SearchParams) bool {
	switch {
	case p.UserID != "" && e.UserID != p.UserID:
		return false
	case p.SessionID != "" && e.SessionID != p.SessionID:
		return false
	case p.Action != "" && e.Action != p.Action:
		return false
	case p.Outcome != "" && e.Outcome() != p.Outcome:
		return false
	case p.StartTime != nil && e.Timestamp.Before(*p.StartTime):
		return false
	case p.EndTime != nil && e.Timestamp.After(*p.EndTime):
		return false
	}
	return true
}

// filter copies matching entries out under the read lock, then sorts them.
func (t *Trail) filter(p SearchParams) []*Entry {
	t.mu.RLock()
	var out []*Entry
	for _, e := range t.entries {
		if matches(e, p) {
			out = append(out, e)
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		switch p.SortBy {
		case "user":
			less = out[i].UserID < out[j].UserID
		case "action":
			less = out[i].Action < out[j].Action
		default:
			less = out[i].Timestamp.Before(out[j].Timestamp)
		}
		if p.SortOrder == "desc" {
			return !less
		}
		return less
	})
	return out
}

func (t *Trail) Search(p SearchParams) *SearchResult {
	applyDefaults(&p)
	filtered := t.filter(p)
	total := len(filtered)

	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	page := filtered[start:end]
	if page == nil {
		page = []*Entry{}
	}
	return &SearchResult{Entries: page, Total: total, Limit: p.Limit, Offset: p.Offset}
}

// Get returns one entry by id, or nil.
func (t *Trail) Get(id string) *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// ExportCSV writes every matching entry, ignoring pagination.
func (t *Trail) ExportCSV(p SearchParams, w io.Writer) error {
	applyDefaults(&p)
	cw := csv.NewWriter(w)

	header := []string{"ID", "Timestamp", "UserID", "SessionID", "Action", "Method", "Path", "Status", "SourceIP", "RequestID"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("audit export csv: write header: %w", err)
	}
	for _, e := range t.filter(p) {
		rec := []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339),
			e.UserID,
			e.SessionID,
			e.Action,
			e.Method,
			e.Path,
			strconv.Itoa(e.StatusCode),
			e.SourceIP,
			e.RequestID,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("audit export csv: write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t *Trail) Summary(p SearchParams) *Summary {
	applyDefaults(&p)
	s := &Summary{
		ByAction:  map[string]int{},
		ByOutcome: map[string]int{},
		ByUser:    map[string]int{},
		BySession: map[string]int{},
	}
	for _, e := range t.filter(p) {
		s.TotalEntries++
		s.ByAction[e.Action]++
		s.ByOutcome[e.Outcome()]++
		s.ByUser[e.UserID]++
		if e.SessionID != "" {
			s.BySession[e.SessionID]++
		}
		ts := e.Timestamp
		if s.First == nil || ts.Before(*s.First) {
			s.First = &ts
		}
		if s.Last == nil || ts.After(*s.Last) {
			s.Last = &ts
		}
	}
	return s
}
