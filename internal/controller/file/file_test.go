package file

import (
	"context"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fixer-backend/internal/controller/controllertest"
	"Fixer-backend/internal/middleware"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/storage"
	"Fixer-backend/internal/storage/storagetest"
)

var site = model.Coordinates{Latitude: 40.7128, Longitude: -74.0060}

const maxBytes = 1024

func router(env *controllertest.Env, st storage.Store) *gin.Engine {
	r, api := env.Router()
	fc := NewFileController(env.Store, st, maxBytes, time.Minute, env.Log)

	api.POST("/jobs/:id/attachments", middleware.SizeLimit(maxBytes), fc.UploadAttachment)
	api.GET("/jobs/:id/attachments", fc.ListAttachments)
	api.GET("/jobs/:id/attachments/:attachment_id", fc.GetAttachment)
	return r
}

func upload(t *testing.T, env *controllertest.Env, r *gin.Engine, u model.User, jobID uint, name string, content []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/attachments", jobID), body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.Token(t, u))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	resp := map[string]interface{}{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestUploadListDownload(t *testing.T) {
	env := controllertest.New(t)
	mem := storagetest.NewMemory()
	r := router(env, mem)
	job := env.Assigned(t, env.Fixtures.Poster, env.Fixtures.Worker, site)

	rec, resp := upload(t, env, r, env.Fixtures.Worker, job.ID, "before.JPG", []byte("jpeg-bytes"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", resp["content_type"])
	assert.Equal(t, "before.JPG", resp["file_name"])
	assert.Equal(t, float64(env.Fixtures.Worker.ID), resp["uploader_id"])
	assert.True(t, strings.HasPrefix(resp["url"].(string), "memory://jobs/"))
	assert.NotContains(t, resp, "object_key")

	keys := mem.Keys()
	require.Len(t, keys, 1)
	data, contentType, err := mem.Object(keys[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, "image/jpeg", contentType)

	rec, _ = env.Do(t, r, env.Fixtures.Poster, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/attachments", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []AttachmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].URL)

	rec, _ = env.Do(t, r, env.Fixtures.Poster, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/attachments/%d", job.ID, list[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "before.JPG")
}

func TestUpload_onlyParticipants(t *testing.T) {
	env := controllertest.New(t)
	r := router(env, storagetest.NewMemory())
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, _ := upload(t, env, r, env.Fixtures.Worker, job.ID, "a.png", []byte("png"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = upload(t, env, r, env.Fixtures.Poster2, job.ID, "a.png", []byte("png"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = upload(t, env, r, env.Fixtures.Poster, job.ID, "a.png", []byte("png"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = env.Do(t, r, env.Fixtures.Poster2, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/attachments", job.ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpload_rejectsBadFiles(t *testing.T) {
	env := controllertest.New(t)
	r := router(env, storagetest.NewMemory())
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, _ := upload(t, env, r, env.Fixtures.Poster, job.ID, "script.exe", []byte("MZ"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec, _ = upload(t, env, r, env.Fixtures.Poster, job.ID, "huge.pdf", bytes.Repeat([]byte("x"), maxBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec, _ = upload(t, env, r, env.Fixtures.Poster, 9999, "a.pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload_storageFailure(t *testing.T) {
	env := controllertest.New(t)
	mem := storagetest.NewMemory()
	mem.PutErr = errors.New("bucket unreachable")
	r := router(env, mem)
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, _ := upload(t, env, r, env.Fixtures.Poster, job.ID, "a.pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	list, err := env.Store.ListAttachments(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStorageDisabled(t *testing.T) {
	env := controllertest.New(t)
	r := router(env, nil)
	job := env.Job(t, env.Fixtures.Poster, site)

	rec, _ := upload(t, env, r, env.Fixtures.Poster, job.ID, "a.pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetAttachment_wrongJob(t *testing.T) {
	env := controllertest.New(t)
	r := router(env, storagetest.NewMemory())
	job := env.Job(t, env.Fixtures.Poster, site)
	other := env.Job(t, env.Fixtures.Poster, site)

	rec, resp := upload(t, env, r, env.Fixtures.Poster, job.ID, "a.pdf", []byte("%PDF"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = env.Do(t, r, env.Fixtures.Poster, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/attachments/%v", other.ID, resp["id"]), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
