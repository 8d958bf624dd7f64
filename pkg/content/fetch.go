package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabrielmiguelok/scholarpage/pkg/retry"
)

// Fetcher returns the raw bytes of a content file. Names are slash
// separated and relative to the content root, e.g. "en/info_en.json".
// A missing file is reported with an error wrapping ErrNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FSFetcher reads content files from a file system.
type FSFetcher struct {
	FS   fs.FS
	Root string
}

// NewFSFetcher creates a fetcher rooted at root inside fsys.
func NewFSFetcher(fsys fs.FS, root string) *FSFetcher {
	return &FSFetcher{FS: fsys, Root: root}
}

func (f *FSFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := path.Join(f.Root, name)
	if f.Root == "" {
		p = path.Clean(name)
	}

	data, err := fs.ReadFile(f.FS, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", name, err)
	}
	return data, nil
}

// HTTPFetcher downloads content files relative to a base URL, retrying
// transient failures.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
	Retry   *retry.Config
}

// NewHTTPFetcher creates a fetcher for baseURL with a 10 second timeout.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/") + "/",
		Client:  &http.Client{Timeout: 10 * time.Second},
		Retry:   retry.DefaultConfig(),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("content: base url: %w", err)
	}
	ref, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("content: file name %q: %w", name, err)
	}
	target := base.ResolveReference(ref).String()

	data, err := retry.Do(ctx, f.Retry, func() ([]byte, error) {
		return f.get(ctx, target, name)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *HTTPFetcher) get(ctx context.Context, target, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrNotFound, name))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("content: fetch %s: status %d", name, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("content: fetch %s: status %d", name, resp.StatusCode))
	}

	return io.ReadAll(resp.Body)
}
