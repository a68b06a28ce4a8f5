// Package templatesrc loads template documents from a directory or an HTTP
// endpoint, caches them, and falls back to the embedded defaults.
package templatesrc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ehr/notewriter/internal/domain/catalog"
)

// Source fetches the raw template document for one mode.
type Source interface {
	Fetch(ctx context.Context, mode catalog.Mode) ([]byte, error)
	Name() string
}

var templateExtensions = []string{".json", ".yaml", ".yml"}

// DirSource reads template_<mode>.{json,yaml,yml} from a directory.
type DirSource struct {
	Dir string
}

func (s DirSource) Name() string { return "dir:" + s.Dir }

func (s DirSource) Fetch(ctx context.Context, mode catalog.Mode) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := catalog.FileBase(mode)
	for _, ext := range templateExtensions {
		data, err := os.ReadFile(filepath.Join(s.Dir, base+ext))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read template %s%s: %w", base, ext, err)
		}
	}
	return nil, fmt.Errorf("no template for %s in %s: %w", mode, s.Dir, os.ErrNotExist)
}

// HTTPSource fetches <BaseURL>/template_<mode>.json.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource returns an HTTPSource with a bounded client timeout.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) Name() string { return "http:" + s.BaseURL }

func (s *HTTPSource) Fetch(ctx context.Context, mode catalog.Mode) ([]byte, error) {
	url := s.BaseURL + "/" + catalog.FileBase(mode) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}
