package filestore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/sqlforge/internal/errs"
)

// ScriptContentType is the content type every published script carries.
const ScriptContentType = "application/sql"

// Artifact is a published script and where to download it.
type Artifact struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	URL    string `json:"url,omitempty"`
}

// ScriptKey returns a fresh, sortable object key for a script under prefix.
func ScriptKey(prefix string) string {
	name := fmt.Sprintf("%s-%s.sql", time.Now().UTC().Format("20060102T150405Z"), uuid.NewString())
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Publish uploads script to bucket under a fresh key below prefix and returns
// the artifact. A positive ttl also presigns a download URL.
func Publish(ctx context.Context, store Store, bucket, prefix, script string, ttl time.Duration) (*Artifact, error) {
	if bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "publish: bucket is required")
	}
	if err := store.EnsureBucket(ctx, bucket); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	key := ScriptKey(prefix)
	info, err := store.PutObject(ctx, bucket, key, strings.NewReader(script), int64(len(script)), ScriptContentType)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", key, err)
	}

	art := &Artifact{Bucket: bucket, Key: info.Key, Size: info.Size}
	if ttl > 0 {
		if art.URL, err = store.PresignGetURL(ctx, bucket, key, ttl); err != nil {
			return nil, fmt.Errorf("publish %s: %w", key, err)
		}
	}
	return art, nil
}
