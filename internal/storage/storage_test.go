package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fixer-backend/internal/config"
)

type fakeS3 struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	types    map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.bodies[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3(t *testing.T) (*fakeS3, *MinioStore) {
	t.Helper()
	fake := &fakeS3{bodies: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	store, err := NewMinioStore(config.StorageConfig{
		Bucket:    "attachments",
		Endpoint:  u.Host,
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return fake, store
}

func TestMinioStore_PutAndDelete(t *testing.T) {
	fake, store := newFakeS3(t)
	ctx := context.Background()

	payload := "site photo bytes"
	err := store.Put(ctx, "jobs/1/photo.jpg", strings.NewReader(payload), int64(len(payload)), "image/jpeg")
	require.NoError(t, err)

	fake.mu.Lock()
	assert.Contains(t, fake.bodies["/attachments/jobs/1/photo.jpg"], payload)
	assert.Equal(t, "image/jpeg", fake.types["/attachments/jobs/1/photo.jpg"])
	fake.mu.Unlock()

	require.NoError(t, store.Delete(ctx, "jobs/1/photo.jpg"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.requests, "DELETE /attachments/jobs/1/photo.jpg")
}

func TestMinioStore_PresignedURL(t *testing.T) {
	_, store := newFakeS3(t)

	link, err := store.URL(context.Background(), "jobs/1/photo.jpg", 10*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/attachments/jobs/1/photo.jpg", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestNew_SelectsBackend(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = New(context.Background(), config.StorageConfig{Backend: "s3", Endpoint: "localhost:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.IsType(t, &MinioStore{}, store)

	_, err = New(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}
