package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// DefaultMaxArchiveBytes bounds the size of a fetched archive.
const DefaultMaxArchiveBytes = 256 << 20

// Fetcher retrieves the raw bytes of an archive.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// HTTPFetcher downloads archives over HTTP(S).
type HTTPFetcher struct {
	Client *http.Client
	// MaxBytes bounds the body size. Zero means DefaultMaxArchiveBytes.
	MaxBytes int64
}

func (f HTTPFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return readLimited(resp.Body, f.MaxBytes)
}

// FileFetcher reads archives from the local filesystem. It accepts file://
// URLs and plain paths.
type FileFetcher struct {
	MaxBytes int64
}

func (f FileFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := source
	if strings.HasPrefix(source, "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return nil, err
		}
		path = u.Path
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readLimited(file, f.MaxBytes)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxArchiveBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("archive exceeds %d bytes", limit)
	}
	return data, nil
}

// NewFetcher returns a Fetcher that downloads http and https sources with
// client and reads everything else from disk.
func NewFetcher(client *http.Client) Fetcher {
	return schemeFetcher{
		http: HTTPFetcher{Client: client},
		file: FileFetcher{},
	}
}

type schemeFetcher struct {
	http Fetcher
	file Fetcher
}

func (f schemeFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return f.http.Fetch(ctx, source)
	}
	return f.file.Fetch(ctx, source)
}
