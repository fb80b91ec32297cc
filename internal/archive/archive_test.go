package archive

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/filestore"
	"github.com/koustreak/greeny/internal/pipeline"
)

type memObject struct {
	io.Reader
	info *filestore.ObjectInfo
}

func (o *memObject) Close() error                { return nil }
func (o *memObject) Info() *filestore.ObjectInfo { return o.info }

// memStore keeps objects in a map keyed by bucket/key.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	infos   map[string]filestore.ObjectInfo
	now     time.Time
}

func newMemStore() *memStore {
	return &memStore{
		objects: map[string][]byte{},
		infos:   map[string]filestore.ObjectInfo{},
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) Ping(context.Context) error                 { return nil }
func (m *memStore) Close() error                               { return nil }
func (m *memStore) EnsureBucket(context.Context, string) error { return nil }

func (m *memStore) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(time.Minute)
	info := filestore.ObjectInfo{Key: key, Size: int64(len(b)), ContentType: opts.ContentType, LastModified: m.now}
	m.objects[bucket+"/"+key] = b
	m.infos[bucket+"/"+key] = info
	return &info, nil
}

func (m *memStore) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []filestore.ObjectInfo
	for k, info := range m.infos {
		if strings.HasPrefix(k, bucket+"/"+opts.Prefix) {
			out = append(out, info)
		}
	}
	return out, nil
}

func (m *memStore) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such key")
	}
	info := m.infos[bucket+"/"+key]
	return &memObject{Reader: bytes.NewReader(b), info: &info}, nil
}

func (m *memStore) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[bucket+"/"+key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such key")
	}
	return &info, nil
}

func (m *memStore) PresignGetURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "http://minio.local/" + bucket + "/" + key + "?X-Amz-Signature=x", nil
}

func trace(question string) *pipeline.Trace {
	return &pipeline.Trace{
		ID:       uuid.NewString(),
		Question: question,
		SQL:      "SELECT 1",
		Result:   "Columns: n\n1\n",
		Answer:   &pipeline.Answer{Answer: "One.", DataType: pipeline.DataTypeText},
		Outcome:  "answered",
		Timings:  pipeline.Timings{Synthesize: 1200 * time.Millisecond},
	}
}

func TestArchive_RecordAndGet(t *testing.T) {
	store := newMemStore()
	a := New(store, "greeny", "/transcripts/")
	ctx := context.Background()

	tr := trace("How many companies?")
	require.NoError(t, a.Record(ctx, tr))

	info, err := store.StatObject(ctx, "greeny", "transcripts/"+tr.ID+".json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", info.ContentType)

	got, err := a.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Question, got.Question)
	assert.Equal(t, tr.Answer, got.Answer)
	assert.Equal(t, 1200*time.Millisecond, got.Timings.Synthesize)
}

func TestArchive_GetErrors(t *testing.T) {
	a := New(newMemStore(), "greeny", "")

	_, err := a.Get(context.Background(), "../../etc/passwd")
	assert.True(t, errs.IsInvalidInput(err))

	_, err = a.Get(context.Background(), uuid.NewString())
	assert.True(t, errs.IsNotFound(err))
}

func TestArchive_ListNewestFirst(t *testing.T) {
	store := newMemStore()
	a := New(store, "greeny", "")
	ctx := context.Background()

	first, second, third := trace("a"), trace("b"), trace("c")
	for _, tr := range []*pipeline.Trace{first, second, third} {
		require.NoError(t, a.Record(ctx, tr))
	}
	_, err := store.PutObject(ctx, "greeny", "answers/readme.txt", strings.NewReader("x"), 1, filestore.PutOptions{})
	require.NoError(t, err)

	entries, err := a.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, third.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, "answers/"+third.ID+".json", entries[0].Key)
}

func TestArchive_URL(t *testing.T) {
	store := newMemStore()
	a := New(store, "greeny", "")
	ctx := context.Background()

	tr := trace("x")
	require.NoError(t, a.Record(ctx, tr))

	u, err := a.URL(ctx, tr.ID, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, u, "answers/"+tr.ID+".json")

	_, err = a.URL(ctx, uuid.NewString(), time.Hour)
	assert.True(t, errs.IsNotFound(err))
}
