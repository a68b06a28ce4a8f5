package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSaveDelay is the debounce window between the last mutation and the
// write to the repository.
const DefaultSaveDelay = 300 * time.Millisecond

type pendingSave struct {
	sess  *Session
	timer *time.Timer
}

// Saver coalesces bursts of mutations into one repository write per session.
type Saver struct {
	mu      sync.Mutex
	repo    Repository
	delay   time.Duration
	pending map[uuid.UUID]*pendingSave
	closed  bool
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

func NewSaver(repo Repository, delay time.Duration, logger zerolog.Logger) *Saver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &Saver{
		repo:    repo,
		delay:   delay,
		pending: make(map[uuid.UUID]*pendingSave),
		logger:  logger,
	}
}

// Schedule queues a snapshot of sess, replacing any queued snapshot and
// restarting the debounce window. After Close it writes synchronously.
func (s *Saver) Schedule(sess *Session) {
	snap := sess.Clone()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.write(context.Background(), snap)
		return
	}
	if p := s.pending[snap.ID]; p != nil && p.timer.Stop() {
		p.sess = snap
		p.timer.Reset(s.delay)
		s.mu.Unlock()
		return
	}
	p := &pendingSave{sess: snap}
	s.wg.Add(1)
	p.timer = time.AfterFunc(s.delay, func() { s.fire(p) })
	s.pending[snap.ID] = p
	s.mu.Unlock()
}

func (s *Saver) fire(p *pendingSave) {
	defer s.wg.Done()

	s.mu.Lock()
	id := p.sess.ID
	if s.pending[id] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	snap := p.sess
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.write(ctx, snap)
}

func (s *Saver) write(ctx context.Context, snap *Session) {
	if err := s.repo.Update(ctx, snap); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug().Str("session_id", snap.ID.String()).Msg("dropping save for deleted session")
			return
		}
		s.logger.Error().Err(err).Str("session_id", snap.ID.String()).Msg("failed to save session")
	}
}

// take removes a queued save whose timer has not fired yet.
func (s *Saver) take(id uuid.UUID) *Session {
	p := s.pending[id]
	if p == nil || !p.timer.Stop() {
		return nil
	}
	delete(s.pending, id)
	s.wg.Done()
	return p.sess
}

// Flush writes the queued snapshot for id now, if there is one.
func (s *Saver) Flush(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	snap := s.take(id)
	s.mu.Unlock()
	if snap != nil {
		s.write(ctx, snap)
	}
}

// Discard drops the queued snapshot for id without writing it.
func (s *Saver) Discard(id uuid.UUID) {
	s.mu.Lock()
	s.take(id)
	s.mu.Unlock()
}

// DiscardAll drops every queued snapshot.
func (s *Saver) DiscardAll() {
	s.mu.Lock()
	for id := range s.pending {
		s.take(id)
	}
	s.mu.Unlock()
}

// Pending reports how many sessions have an unwritten snapshot.
func (s *Saver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close writes every queued snapshot and waits for in-flight writes.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	var snaps []*Session
	for id := range s.pending {
		if snap := s.take(id); snap != nil {
			snaps = append(snaps, snap)
		}
	}
	s.mu.Unlock()

	for _, snap := range snaps {
		s.write(ctx, snap)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
