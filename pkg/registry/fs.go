package registry

import (
	"context"
	stderrors "errors"
	"io"
	"time"
)

var ErrNotFound = stderrors.New("not found")

type FsObjectMeta struct {
	Name         string
	Size         int64
	LastModified time.Time
}

type BlobContent struct {
	ContentType   string
	ContentLength int64
	Content       io.ReadCloser
}

func (s BlobContent) Close() error {
	if s.Content != nil {
		return s.Content.Close()
	}
	return nil
}

func (s BlobContent) Read(p []byte) (int, error) {
	return s.Content.Read(p)
}

// FSProvider is a flat object namespace addressed by slash separated paths.
// Get on a missing path returns an error matching ErrNotFound.
type FSProvider interface {
	Put(ctx context.Context, path string, content BlobContent) error
	Get(ctx context.Context, path string) (BlobContent, error)
	Exists(ctx context.Context, path string) (bool, error)
	// List returns objects below path with names relative to it.
	List(ctx context.Context, path string, recursive bool) ([]FsObjectMeta, error)
}

func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}
