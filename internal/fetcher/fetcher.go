// Package fetcher downloads dataset files and boundary payloads over HTTP, FTP or the local filesystem.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when the remote resource does not exist.
var ErrNotFound = eris.New("fetcher: resource not found")

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Sources routes a source location to the fetcher for its scheme.
type Sources struct {
	HTTP Fetcher
	FTP  Fetcher
}

// Open returns a reader for a local path, an http(s):// URL or an ftp:// URL.
func (s Sources) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		f, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", source)
		}
		return f, nil
	}

	switch u.Scheme {
	case "http", "https":
		if s.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher configured for %s", source)
		}
		return s.HTTP.Download(ctx, source)
	case "ftp":
		if s.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher configured for %s", source)
		}
		return s.FTP.Download(ctx, source)
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", u.Path)
		}
		return f, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
