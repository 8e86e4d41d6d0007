// Package fetcher retrieves listing data over HTTP, FTP and the local
// filesystem, and parses CSV, XLSX and JSON payloads into record streams.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Opener resolves a seed location to a byte stream. Locations are http(s)://
// or ftp:// URLs, file:// URLs, or plain filesystem paths.
type Opener struct {
	HTTP Fetcher
	FTP  Fetcher
}

// Open returns a reader for loc. The caller must close it.
func (o *Opener) Open(ctx context.Context, loc string) (io.ReadCloser, error) {
	switch scheme := Scheme(loc); scheme {
	case "http", "https":
		if o.HTTP == nil {
			return nil, eris.Errorf("open %s: no http fetcher configured", loc)
		}
		return o.HTTP.Download(ctx, loc)
	case "ftp":
		if o.FTP == nil {
			return nil, eris.Errorf("open %s: no ftp fetcher configured", loc)
		}
		return o.FTP.Download(ctx, loc)
	case "file":
		u, err := url.Parse(loc)
		if err != nil {
			return nil, eris.Wrap(err, "parse file url")
		}
		return openFile(u.Path)
	case "":
		return openFile(loc)
	default:
		return nil, eris.Errorf("open %s: unsupported scheme %q", loc, scheme)
	}
}

// Scheme returns the lowercased URL scheme of loc, or "" for a bare path.
func Scheme(loc string) string {
	i := strings.Index(loc, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(loc[:i])
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open file")
	}
	return f, nil
}
