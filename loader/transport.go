package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/vfs"
)

// ErrNotFound is returned by transports when the resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Transport produces the stored bytes of a resource.
type Transport interface {
	Fetch(ctx context.Context, key resource.Key) ([]byte, error)
}

// HTTPTransport fetches resources from a resource server rooted at Base,
// e.g. http://localhost:8000/resources.
type HTTPTransport struct {
	base   string
	client *http.Client
	sem    *semaphore.Weighted
}

func NewHTTPTransport(base string, maxInflight int, timeout time.Duration) *HTTPTransport {
	if maxInflight < 1 {
		maxInflight = 1
	}
	return &HTTPTransport{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
		sem:    semaphore.NewWeighted(int64(maxInflight)),
	}
}

func (t *HTTPTransport) URL(key resource.Key) string {
	return t.base + "/" + key.Path()
}

func (t *HTTPTransport) Fetch(ctx context.Context, key resource.Key) ([]byte, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(key), nil)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create request")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", req.URL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "GET %s", req.URL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GET %s: %s", req.URL, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %s", req.URL)
	}
	return data, nil
}

// DirTransport reads resources from a local resource tree.
type DirTransport struct {
	root vfs.Directory
}

func NewDirTransport(root vfs.Directory) *DirTransport {
	return &DirTransport{root: root}
}

func (t *DirTransport) Fetch(ctx context.Context, key resource.Key) ([]byte, error) {
	data, err := vfs.ReadPath(t.root, key.Path())
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%v", key)
		}
		return nil, err
	}
	return data, nil
}
