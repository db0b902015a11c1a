// Package storetest provides an in-memory filestore.Store for tests.
package storetest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/filestore"
)

// Memory is a concurrency-safe in-memory Store. Errors keyed by method name
// ("PutObject", "EnsureBucket", ...) are returned instead of doing the work.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	Errors  map[string]error
	closed  bool
}

// New returns an empty store with no buckets.
func New() *Memory {
	return &Memory{buckets: map[string]map[string][]byte{}, Errors: map[string]error{}}
}

func (m *Memory) fail(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Errors[op]
}

func (m *Memory) Ping(context.Context) error { return m.fail("Ping") }

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Memory) EnsureBucket(_ context.Context, bucket string) error {
	if err := m.fail("EnsureBucket"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string][]byte{}
	}
	return nil
}

func (m *Memory) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	if err := m.fail("PutObject"); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "bucket %s does not exist", bucket)
	}
	b[key] = body
	return &filestore.ObjectInfo{Key: key, Size: int64(len(body)), ContentType: contentType, LastModified: time.Now()}, nil
}

func (m *Memory) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	if err := m.fail("ListObjects"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []filestore.ObjectInfo
	for _, k := range keys {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		out = append(out, filestore.ObjectInfo{Key: k, Size: int64(len(m.buckets[bucket][k])), ContentType: filestore.ScriptContentType})
	}
	return out, nil
}

func (m *Memory) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	info, err := m.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &object{Reader: bytes.NewReader(m.buckets[bucket][key]), info: info}, nil
}

func (m *Memory) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	if err := m.fail("StatObject"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.buckets[bucket][key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "object %s/%s does not exist", bucket, key)
	}
	return &filestore.ObjectInfo{Key: key, Size: int64(len(body)), ContentType: filestore.ScriptContentType}, nil
}

func (m *Memory) PresignGetURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := m.fail("PresignGetURL"); err != nil {
		return "", err
	}
	return "memory://" + bucket + "/" + key + "?ttl=" + ttl.String(), nil
}

type object struct {
	*bytes.Reader
	info *filestore.ObjectInfo
}

func (o *object) Close() error { return nil }

func (o *object) Info() *filestore.ObjectInfo { return o.info }

var _ filestore.Store = (*Memory)(nil)
