package boundary

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/fetcher"
)

// maxPayloadBytes caps a single boundary download.
const maxPayloadBytes = 64 << 20

// Provider resolves the boundary geometry for a key.
// Implementations return an error wrapping ErrNotFound for missing resources
// and ErrMalformed for payloads that are not polygon GeoJSON.
type Provider interface {
	Fetch(ctx context.Context, key Key) (*Geometry, error)
}

// Writer persists boundary polygons for a key, replacing any existing ones.
type Writer interface {
	WriteBoundary(ctx context.Context, key Key, polys []*geom.MultiPolygon) error
}

// HTTPProvider reads boundaries published under a base URL as {year}/{state}_{metric}_{bin}.geojson.
type HTTPProvider struct {
	fetcher fetcher.Fetcher
	baseURL string
}

// NewHTTPProvider creates a provider rooted at baseURL.
func NewHTTPProvider(f fetcher.Fetcher, baseURL string) *HTTPProvider {
	return &HTTPProvider{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

// URL returns the resource URL for key. The file name is path-escaped since bin labels contain spaces.
func (p *HTTPProvider) URL(key Key) string {
	return p.baseURL + "/" + strconv.Itoa(key.Year) + "/" + url.PathEscape(key.FileName())
}

// Fetch implements Provider.
func (p *HTTPProvider) Fetch(ctx context.Context, key Key) (*Geometry, error) {
	u := p.URL(key)
	body, err := p.fetcher.Download(ctx, u)
	if err != nil {
		if errors.Is(err, fetcher.ErrNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "boundary: %s", key)
		}
		return nil, eris.Wrapf(err, "boundary: fetch %s", key)
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, maxPayloadBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", key)
	}

	g, err := ParseGeometry(data)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: %s", key)
	}

	zap.L().Debug("boundary: fetched over http",
		zap.String("url", u),
		zap.Int("bytes", len(data)),
		zap.Int("features", g.Features),
	)
	return g, nil
}

// FileProvider reads and writes boundaries in a local directory tree with the published layout.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) path(key Key) string {
	return filepath.Join(p.dir, strconv.Itoa(key.Year), key.FileName())
}

// Fetch implements Provider.
func (p *FileProvider) Fetch(ctx context.Context, key Key) (*Geometry, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "boundary: fetch cancelled")
	}

	data, err := os.ReadFile(p.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(ErrNotFound, "boundary: %s", key)
		}
		return nil, eris.Wrapf(err, "boundary: read %s", key)
	}

	g, err := ParseGeometry(data)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: %s", key)
	}
	return g, nil
}

// WriteBoundary implements Writer.
func (p *FileProvider) WriteBoundary(_ context.Context, key Key, polys []*geom.MultiPolygon) error {
	data, err := EncodeFeatureCollection(polys, map[string]any{
		"survyear":     key.Year,
		"variable":     key.Metric,
		"outcome_bins": key.Bin,
	})
	if err != nil {
		return err
	}

	path := p.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "boundary: create year dir")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "boundary: write %s", key)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "boundary: rename %s", key)
	}
	return nil
}
