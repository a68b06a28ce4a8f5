package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/ehr/notewriter/internal/domain/catalog"
	"github.com/ehr/notewriter/internal/domain/note"
	"github.com/ehr/notewriter/internal/platform/websocket"
)

// DefaultIdleTTL is how long an untouched session stays in the working set.
const DefaultIdleTTL = 30 * time.Minute

// CatalogSource supplies the current templates.
type CatalogSource interface {
	Catalog(ctx context.Context) (*catalog.Catalog, error)
	Document(ctx context.Context, mode catalog.Mode) (*catalog.Document, error)
}

// Service owns the live working set of sessions. Mutations are applied in
// memory and persisted through the debounced Saver.
type Service struct {
	mu        sync.Mutex
	repo      Repository
	templates CatalogSource
	saver     *Saver
	live      *cache.Cache
	events    websocket.EventPublisher
	logger    zerolog.Logger
}

// Options tunes a Service. Zero values use the defaults.
type Options struct {
	SaveDelay time.Duration
	IdleTTL   time.Duration
	Events    websocket.EventPublisher
}

func NewService(repo Repository, templates CatalogSource, opts Options, logger zerolog.Logger) *Service {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	s := &Service{
		repo:      repo,
		templates: templates,
		saver:     NewSaver(repo, opts.SaveDelay, logger),
		live:      cache.New(ttl, ttl/2),
		events:    opts.Events,
		logger:    logger,
	}
	s.live.OnEvicted(func(key string, _ interface{}) {
		id, err := uuid.Parse(key)
		if err != nil {
			return
		}
		s.saver.Flush(context.Background(), id)
	})
	return s
}

// Saver exposes the debounced writer, mainly for shutdown.
func (s *Service) Saver() *Saver { return s.saver }

func (s *Service) Create(ctx context.Context, label string) (*Session, error) {
	sess := &Session{Label: label}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.live.SetDefault(sess.ID.String(), sess)
	return sess.Clone(), nil
}

// load returns the live copy of a session, pulling it into the working set
// on first use. Callers must hold s.mu.
func (s *Service) load(ctx context.Context, id uuid.UUID) (*Session, error) {
	if v, ok := s.live.Get(id.String()); ok {
		return v.(*Session), nil
	}
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.live.SetDefault(id.String(), sess)
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// List reads from the repository, so very recent edits may still be pending.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	s.saver.Discard(id)
	s.live.Delete(id.String())
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, websocket.Event{
		Type:      websocket.EventSessionDeleted,
		Topic:     websocket.SessionTopic(id.String()),
		SessionID: id.String(),
	})
	return nil
}

// DeleteAll removes every session.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.saver.DiscardAll()
	s.live.Flush()
	s.mu.Unlock()
	return s.repo.DeleteAll(ctx)
}

// Mutate applies a batch of mutations atomically: if any mutation is
// invalid, none are kept.
func (s *Service) Mutate(ctx context.Context, id uuid.UUID, muts []Mutation) (*MutationResult, error) {
	cat, err := s.templates.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	s.mu.Lock()
	sess, err := s.load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	space := sess.Space.Clone()
	var touched []string
	seen := map[string]bool{}
	for i, m := range muts {
		key, err := Apply(space, cat, m)
		if err != nil {
			s.mu.Unlock()
			return nil, &ValidationError{Index: i, Msg: err.Error()}
		}
		if key != "" && !seen[key] {
			seen[key] = true
			touched = append(touched, key)
		}
	}
	sess.Space = space
	sess.VersionID++
	sess.UpdatedAt = time.Now().UTC()
	s.live.SetDefault(id.String(), sess)
	s.saver.Schedule(sess)
	snapshot := space.Clone()
	version := sess.VersionID
	s.mu.Unlock()

	a := note.NewAssembler(cat, snapshot)
	res := &MutationResult{SessionID: id, VersionID: version, Note: a.Note()}
	for _, key := range touched {
		mode, title := splitKey(key)
		res.Sections = append(res.Sections, SectionText{
			Mode:  string(mode),
			Title: title,
			Text:  a.SectionText(mode, title),
		})
	}
	s.publishResult(ctx, res)
	return res, nil
}

// SectionText composes one section of a session.
func (s *Service) SectionText(ctx context.Context, id uuid.UUID, mode catalog.Mode, title string) (string, error) {
	cat, sess, err := s.snapshot(ctx, id)
	if err != nil {
		return "", err
	}
	return note.NewAssembler(cat, sess.Space).SectionText(mode, title), nil
}

// Note composes the full cross-mode note of a session.
func (s *Service) Note(ctx context.Context, id uuid.UUID) (string, error) {
	cat, sess, err := s.snapshot(ctx, id)
	if err != nil {
		return "", err
	}
	return note.NewAssembler(cat, sess.Space).Note(), nil
}

// Template returns the active template document for mode.
func (s *Service) Template(ctx context.Context, mode catalog.Mode) (*catalog.Document, error) {
	return s.templates.Document(ctx, mode)
}

func (s *Service) snapshot(ctx context.Context, id uuid.UUID) (*catalog.Catalog, *Session, error) {
	cat, err := s.templates.Catalog(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load templates: %w", err)
	}
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return cat, sess, nil
}

// Close persists all pending edits.
func (s *Service) Close(ctx context.Context) error {
	return s.saver.Close(ctx)
}

func (s *Service) publishResult(ctx context.Context, res *MutationResult) {
	if s.events == nil {
		return
	}
	sid := res.SessionID.String()
	topic := websocket.SessionTopic(sid)
	for _, sec := range res.Sections {
		data, _ := json.Marshal(sec)
		s.publish(ctx, websocket.Event{
			Type:      websocket.EventSectionUpdated,
			Topic:     topic,
			SessionID: sid,
			Mode:      sec.Mode,
			Section:   sec.Title,
			Data:      data,
		})
	}
	data, _ := json.Marshal(map[string]interface{}{"version_id": res.VersionID, "note": res.Note})
	s.publish(ctx, websocket.Event{
		Type:      websocket.EventNoteUpdated,
		Topic:     topic,
		SessionID: sid,
		Data:      data,
	})
}

func (s *Service) publish(ctx context.Context, ev websocket.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("type", ev.Type).Msg("failed to publish event")
	}
}

func splitKey(key string) (catalog.Mode, string) {
	mode, title, _ := strings.Cut(key, ":")
	return catalog.Mode(mode), title
}

// IsValidation reports whether err came from a malformed mutation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
