package templatesrc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ehr/notewriter/internal/domain/catalog"
)

// ErrSuperseded is returned by Switch when a newer Switch call started before
// this one finished.
var ErrSuperseded = errors.New("template load superseded by a newer request")

// DefaultTTL matches how long a fetched template stays fresh.
const DefaultTTL = 24 * time.Hour

// FetchTimeout bounds a single source fetch. On expiry the embedded default
// is served.
const FetchTimeout = 30 * time.Second

// Loader resolves template documents per mode. Fetches are deduplicated per
// mode, cached for the TTL, and fall back to the embedded defaults when the
// source fails or returns an invalid document.
type Loader struct {
	source Source
	cache  *cache.Cache
	group  singleflight.Group
	token  atomic.Uint64
	logger zerolog.Logger
}

// NewLoader creates a Loader. A nil source serves only the embedded defaults.
func NewLoader(source Source, ttl time.Duration, logger zerolog.Logger) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Loader{
		source: source,
		cache:  cache.New(ttl, ttl/2),
		logger: logger,
	}
}

// Document returns the template for mode, fetching it at most once per TTL.
func (l *Loader) Document(ctx context.Context, mode catalog.Mode) (*catalog.Document, error) {
	if doc, ok := l.cached(mode); ok {
		return doc, nil
	}
	// The shared fetch outlives any one caller; each caller only stops
	// waiting when its own context ends.
	ch := l.group.DoChan(string(mode), func() (interface{}, error) {
		if doc, ok := l.cached(mode); ok {
			return doc, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FetchTimeout)
		defer cancel()
		return l.fetch(fctx, mode)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*catalog.Document), nil
	}
}

func (l *Loader) cached(mode catalog.Mode) (*catalog.Document, bool) {
	v, ok := l.cache.Get(string(mode))
	if !ok {
		return nil, false
	}
	doc, ok := v.(*catalog.Document)
	return doc, ok
}

func (l *Loader) fetch(ctx context.Context, mode catalog.Mode) (*catalog.Document, error) {
	doc, err := l.fetchSource(ctx, mode)
	if err != nil {
		l.logger.Warn().
			Err(err).
			Str("mode", string(mode)).
			Msg("template load failed, using embedded default")
		doc, err = catalog.DefaultDocument(mode)
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", mode, err)
		}
	}
	l.cache.Set(string(mode), doc, cache.DefaultExpiration)
	return doc, nil
}

func (l *Loader) fetchSource(ctx context.Context, mode catalog.Mode) (*catalog.Document, error) {
	if l.source == nil {
		return catalog.DefaultDocument(mode)
	}
	data, err := l.source.Fetch(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", l.source.Name(), err)
	}
	doc, err := catalog.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse from %s: %w", l.source.Name(), err)
	}
	return doc, nil
}

// Switch loads mode on behalf of a caller that only cares about the most
// recent request, such as a user flipping between modes. If another Switch
// begins before this one completes, the older result is discarded.
func (l *Loader) Switch(ctx context.Context, mode catalog.Mode) (*catalog.Document, error) {
	tok := l.token.Add(1)
	doc, err := l.Document(ctx, mode)
	if l.token.Load() != tok {
		return nil, ErrSuperseded
	}
	return doc, err
}

// Catalog loads every mode concurrently and assembles them into a catalog.
func (l *Loader) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	modes := catalog.Modes()
	var (
		mu   sync.Mutex
		docs = make(map[catalog.Mode]*catalog.Document, len(modes))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range modes {
		m := m
		g.Go(func() error {
			doc, err := l.Document(gctx, m)
			if err != nil {
				return err
			}
			mu.Lock()
			docs[m] = doc
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return catalog.New(docs), nil
}

// Invalidate drops cached documents for the given modes, or all of them.
func (l *Loader) Invalidate(modes ...catalog.Mode) {
	if len(modes) == 0 {
		l.cache.Flush()
		return
	}
	for _, m := range modes {
		l.cache.Delete(string(m))
	}
}
