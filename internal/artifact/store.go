package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// DefaultStoreURL keeps published artifacts in process memory.
const DefaultStoreURL = "mem://"

// ErrReleased is returned when opening a handle that was already released.
var ErrReleased = errors.New("artifact: handle released")

// Store publishes artifacts under addressable keys so they can be opened,
// saved and released independently of the session that produced them.
type Store struct {
	bucket *blob.Bucket
	log    zerolog.Logger
}

// OpenStore opens a store backed by the bucket at url. An empty url means
// DefaultStoreURL.
func OpenStore(ctx context.Context, url string, log zerolog.Logger) (*Store, error) {
	if url == "" {
		url = DefaultStoreURL
	}
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	return NewStore(bucket, log), nil
}

// NewStore wraps an already opened bucket. The store takes ownership of it.
func NewStore(bucket *blob.Bucket, log zerolog.Logger) *Store {
	return &Store{bucket: bucket, log: log}
}

// Close closes the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// Publish writes a under a key derived from sessionID and returns a handle
// to it.
func (s *Store) Publish(ctx context.Context, sessionID string, a *Artifact) (*Handle, error) {
	key := path.Join(sessionID, a.Filename)

	opts := &blob.WriterOptions{
		ContentType:        a.ContentType,
		ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}),
	}
	if err := s.bucket.WriteAll(ctx, key, a.Bytes(), opts); err != nil {
		return nil, fmt.Errorf("publish artifact %s: %w", key, err)
	}

	s.log.Debug().Str("key", key).Int64("size", a.Size()).Msg("artifact published")

	return &Handle{
		store:       s,
		Key:         key,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Size:        a.Size(),
	}, nil
}

// Handle addresses a published artifact.
type Handle struct {
	store *Store

	Key         string
	Filename    string
	ContentType string
	Size        int64

	mu       sync.Mutex
	released bool
}

// Open returns a reader over the published artifact.
func (h *Handle) Open(ctx context.Context) (io.ReadCloser, error) {
	if h.Released() {
		return nil, ErrReleased
	}
	r, err := h.store.bucket.NewReader(ctx, h.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", h.Key, err)
	}
	return r, nil
}

// Release deletes the published artifact. Calling it again is a no-op.
func (h *Handle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true

	if err := h.store.bucket.Delete(ctx, h.Key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("release artifact %s: %w", h.Key, err)
	}
	h.store.log.Debug().Str("key", h.Key).Msg("artifact released")
	return nil
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Save copies the artifact behind h into dst under name. An empty name
// means the artifact's filename.
func Save(ctx context.Context, h *Handle, dst *blob.Bucket, name string) error {
	if name == "" {
		name = h.Filename
	}

	r, err := h.Open(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := dst.NewWriter(ctx, name, &blob.WriterOptions{ContentType: h.ContentType})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// OpenBucket opens the destination for saved artifacts. A value containing
// "://" is treated as a bucket URL (file://, s3://, mem://); anything else is
// a local directory, created if missing.
func OpenBucket(ctx context.Context, output string) (*blob.Bucket, error) {
	if output == "" {
		output = "."
	}
	if strings.Contains(output, "://") {
		bucket, err := blob.OpenBucket(ctx, output)
		if err != nil {
			return nil, fmt.Errorf("open output bucket: %w", err)
		}
		return bucket, nil
	}

	dir, err := filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("open output dir: %w", err)
	}
	return bucket, nil
}
