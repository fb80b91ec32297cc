// Package archive stores answer transcripts as JSON objects in a filestore
// bucket, one object per pipeline run at <prefix>/<id>.json.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/filestore"
	"github.com/koustreak/greeny/internal/pipeline"
)

const (
	contentType   = "application/json"
	defaultPrefix = "answers"
)

// Entry is one archived transcript in a listing.
type Entry struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Archive implements pipeline.Recorder over a filestore.Store.
type Archive struct {
	store  filestore.Store
	bucket string
	prefix string
}

// New returns an Archive writing into bucket under prefix ("answers" when empty).
func New(store filestore.Store, bucket, prefix string) *Archive {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Archive{store: store, bucket: bucket, prefix: prefix}
}

func (a *Archive) key(id string) string {
	return path.Join(a.prefix, id+".json")
}

// Record writes t. It satisfies pipeline.Recorder.
func (a *Archive) Record(ctx context.Context, t *pipeline.Trace) error {
	body, err := json.Marshal(t)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to encode transcript", err)
	}
	_, err = a.store.PutObject(ctx, a.bucket, a.key(t.ID), bytes.NewReader(body), int64(len(body)),
		filestore.PutOptions{ContentType: contentType})
	return err
}

// Get reads the transcript with id. Ids that are not UUIDs are invalid
// input; unknown ids are not_found.
func (a *Archive) Get(ctx context.Context, id string) (*pipeline.Trace, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	obj, err := a.store.GetObject(ctx, a.bucket, a.key(id))
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	var t pipeline.Trace
	if err := json.NewDecoder(obj).Decode(&t); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to decode transcript", err)
	}
	return &t, nil
}

// List returns up to limit transcripts, newest first.
func (a *Archive) List(ctx context.Context, limit int) ([]Entry, error) {
	objects, err := a.store.ListObjects(ctx, a.bucket, filestore.ListOptions{
		Prefix:    a.prefix + "/",
		Recursive: true,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(objects))
	for _, o := range objects {
		name := path.Base(o.Key)
		if o.IsDir || !strings.HasSuffix(name, ".json") {
			continue
		}
		entries = append(entries, Entry{
			ID:        strings.TrimSuffix(name, ".json"),
			Key:       o.Key,
			Size:      o.Size,
			CreatedAt: o.LastModified,
		})
	}

	slices.SortFunc(entries, func(x, y Entry) int {
		if c := y.CreatedAt.Compare(x.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// URL returns a presigned download link for the transcript with id.
func (a *Archive) URL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	if _, err := a.store.StatObject(ctx, a.bucket, a.key(id)); err != nil {
		return "", err
	}
	return a.store.PresignGetURL(ctx, a.bucket, a.key(id), ttl)
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errs.Newf(errs.ErrKindInvalidInput, "invalid transcript id %q", id)
	}
	return nil
}
