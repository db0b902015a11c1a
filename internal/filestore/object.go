package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a single stored script.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "exports/20260101T000000Z-<uuid>.sql").
	Key string `json:"key"`

	// Size is the byte size of the object. -1 if unknown.
	Size int64 `json:"size"`

	ContentType string `json:"content_type,omitempty"`

	// ETag is the object's entity tag, as returned by the backend.
	ETag string `json:"etag,omitempty"`

	LastModified time.Time `json:"last_modified"`

	// IsDir is true when the entry represents a virtual directory (prefix),
	// not an actual stored object.
	IsDir bool `json:"is_dir,omitempty"`
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions controls how ListObjects filters results.
type ListOptions struct {
	// Prefix restricts results to objects whose key starts with this string.
	Prefix string

	// Recursive lists every object under Prefix instead of grouping by
	// virtual directories.
	Recursive bool

	// Limit caps the number of results returned. 0 means no cap.
	Limit int
}
