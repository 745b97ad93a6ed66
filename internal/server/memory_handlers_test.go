package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"keepsake/internal/models"
	"keepsake/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return raw
}

func thumbFilename(thumbnailPath string) string {
	return filepath.Base(thumbnailPath)
}

// multipartMemoryRequest builds a multipart form request with memory fields
// and an optional source image.
func multipartMemoryRequest(t *testing.T, method, target string, fields map[string]string, image []byte, cookie *http.Cookie) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	if image != nil {
		part, err := w.CreateFormFile("source", "snapshot.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func createMemoryViaAPI(t *testing.T, app *fiber.App, cookie *http.Cookie, title string, image []byte) uint {
	t.Helper()
	resp := perform(t, app, multipartMemoryRequest(t, http.MethodPost, "/api/my/memories", map[string]string{
		"title": title,
	}, image, cookie))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	memory, ok := body["memory"].(map[string]any)
	require.True(t, ok)
	return uint(memory["id"].(float64))
}

func TestCreateMemory_WithImage(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	image := testutil.TestImagePNG(t, 640, 480)
	resp := perform(t, app, multipartMemoryRequest(t, http.MethodPost, "/api/my/memories", map[string]string{
		"title":        "Harbour at dawn",
		"description":  "Fishing boats heading out",
		"area":         "Waterfront",
		"location":     "North pier",
		"date":         "1957",
		"attribution":  "Family album",
		"rotation":     "90",
		"categories[]": "boats",
	}, image, cookie))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	memory, ok := body["memory"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Harbour at dawn", memory["title"])
	assert.Equal(t, float64(90), memory["rotation"])
	assert.NotEmpty(t, memory["source_path"])
	assert.NotEmpty(t, memory["thumbnail_path"])
}

func TestCreateMemory_WithoutImage(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	id := createMemoryViaAPI(t, app, cookie, "Text-only memory", nil)

	var memory models.Memory
	require.NoError(t, s.db.First(&memory, id).Error)
	assert.Empty(t, memory.SourcePath)
}

func TestCreateMemory_MissingTitle(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	resp := perform(t, app, multipartMemoryRequest(t, http.MethodPost, "/api/my/memories",
		map[string]string{"description": "no title"}, nil, cookie))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetMyMemories_ScopedToOwner(t *testing.T) {
	s, app := newTestServer(t)
	owner := createTestUser(t, s, "margaret", false, false)
	other := createTestUser(t, s, "vera", false, false)
	ownerCookie := signIn(t, app, s, owner)
	otherCookie := signIn(t, app, s, other)

	createMemoryViaAPI(t, app, ownerCookie, "Margaret's memory", nil)

	resp := perform(t, app, authedRequest(t, http.MethodGet, "/api/my/memories", nil, otherCookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["total_count"])

	resp = perform(t, app, authedRequest(t, http.MethodGet, "/api/my/memories", nil, ownerCookie))
	body = decodeBody(t, resp)
	assert.Equal(t, float64(1), body["total_count"])
}

func TestGetMyMemory_SomeoneElses(t *testing.T) {
	s, app := newTestServer(t)
	owner := createTestUser(t, s, "margaret", false, false)
	other := createTestUser(t, s, "vera", false, false)
	ownerCookie := signIn(t, app, s, owner)
	otherCookie := signIn(t, app, s, other)

	id := createMemoryViaAPI(t, app, ownerCookie, "Private memory", nil)

	// Another user's memory is indistinguishable from a missing one.
	resp := perform(t, app, authedRequest(t, http.MethodGet, fmt.Sprintf("/api/my/memories/%d", id), nil, otherCookie))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = perform(t, app, authedRequest(t, http.MethodGet, fmt.Sprintf("/api/my/memories/%d", id), nil, ownerCookie))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetMyMemory_LeavesRememberedIndexAlone(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	id := createMemoryViaAPI(t, app, cookie, "Harbour", nil)
	showPath := fmt.Sprintf("/api/my/memories/%d", id)

	// Showing a memory before any index visit stores nothing.
	resp := perform(t, app, authedRequest(t, http.MethodGet, showPath, nil, cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess, err := s.sessions.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Empty(t, sess.CurrentMemoryIndexPath)

	// Only the index itself writes the slot; revisiting the show page
	// afterwards leaves the remembered page untouched.
	perform(t, app, authedRequest(t, http.MethodGet, "/api/my/memories?page=4", nil, cookie))
	resp = perform(t, app, authedRequest(t, http.MethodGet, showPath, nil, cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess, err = s.sessions.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "/api/my/memories?page=4", sess.CurrentMemoryIndexPath)
}

func TestUpdateMemory_Fields(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	id := createMemoryViaAPI(t, app, cookie, "Before", nil)

	resp := perform(t, app, multipartMemoryRequest(t, http.MethodPut, fmt.Sprintf("/api/my/memories/%d", id),
		map[string]string{"title": "After", "rotation": "450"}, nil, cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var memory models.Memory
	require.NoError(t, s.db.First(&memory, id).Error)
	assert.Equal(t, "After", memory.Title)
	// Rotation is normalized to a quarter turn.
	assert.Equal(t, 90, memory.Rotation)
}

func TestDeleteMemory_RedirectFallback(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	id := createMemoryViaAPI(t, app, cookie, "Doomed", nil)

	resp := perform(t, app, authedRequest(t, http.MethodDelete, fmt.Sprintf("/api/my/memories/%d", id), nil, cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Successfully deleted", body["message"])
	assert.Equal(t, "/api/my/memories", body["redirect_to"])
}

func TestDeleteMemory_RedirectToRememberedIndex(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	id := createMemoryViaAPI(t, app, cookie, "Doomed", nil)

	// Visiting the index stores its exact path, query string included.
	resp := perform(t, app, authedRequest(t, http.MethodGet, "/api/my/memories?page=3", nil, cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "/api/my/memories?page=3", body["return_to"])

	resp = perform(t, app, authedRequest(t, http.MethodDelete, fmt.Sprintf("/api/my/memories/%d", id), nil, cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "/api/my/memories?page=3", body["redirect_to"])
}

func TestDeleteMemory_ReturnToOverride(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	id := createMemoryViaAPI(t, app, cookie, "Doomed", nil)

	perform(t, app, authedRequest(t, http.MethodGet, "/api/my/memories?page=2", nil, cookie))

	resp := perform(t, app, authedRequest(t, http.MethodDelete,
		fmt.Sprintf("/api/my/memories/%d?return_to=/somewhere/else", id), nil, cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "/somewhere/else", body["redirect_to"])
}

func TestDeleteMemory_SomeoneElses(t *testing.T) {
	s, app := newTestServer(t)
	owner := createTestUser(t, s, "margaret", false, false)
	other := createTestUser(t, s, "vera", false, false)
	ownerCookie := signIn(t, app, s, owner)
	otherCookie := signIn(t, app, s, other)

	id := createMemoryViaAPI(t, app, ownerCookie, "Private memory", nil)

	resp := perform(t, app, authedRequest(t, http.MethodDelete, fmt.Sprintf("/api/my/memories/%d", id), nil, otherCookie))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Could not delete", body["error"])

	// Still there.
	var count int64
	s.db.Model(&models.Memory{}).Where("id = ?", id).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestServeMemoryFiles(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)

	image := testutil.TestImagePNG(t, 640, 480)
	resp := perform(t, app, multipartMemoryRequest(t, http.MethodPost, "/api/my/memories", map[string]string{
		"title":    "Harbour",
		"rotation": "90",
	}, image, cookie))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	memory := body["memory"].(map[string]any)
	id := uint(memory["id"].(float64))

	loaded, err := s.memoryRepo.GetByID(context.Background(), id)
	require.NoError(t, err)

	srcResp := perform(t, app, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/media/memory/source/%d/%s", id, loaded.SourceFilename), nil))
	require.Equal(t, http.StatusOK, srcResp.StatusCode)

	// Rotation is applied at serve time, swapping the dimensions.
	raw := readAll(t, srcResp)
	w, h := testutil.DecodeSize(t, raw)
	assert.Equal(t, 480, w)
	assert.Equal(t, 640, h)

	thumbName := thumbFilename(loaded.ThumbnailPath)
	thumbResp := perform(t, app, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/media/memory/source/%d/thumb/%s", id, thumbName), nil))
	require.Equal(t, http.StatusOK, thumbResp.StatusCode)

	tw, th := testutil.DecodeSize(t, readAll(t, thumbResp))
	assert.LessOrEqual(t, tw, 200)
	assert.LessOrEqual(t, th, 200)
}

func TestServeMemoryFile_UnknownMemory(t *testing.T) {
	_, app := newTestServer(t)

	resp := perform(t, app, httptest.NewRequest(http.MethodGet, "/media/memory/source/999/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeMemoryFile_TraversalRejected(t *testing.T) {
	s, app := newTestServer(t)
	user := createTestUser(t, s, "margaret", false, false)
	cookie := signIn(t, app, s, user)
	id := createMemoryViaAPI(t, app, cookie, "Harbour", testutil.TestImagePNG(t, 64, 64))

	resp := perform(t, app, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/media/memory/source/%d/..%%2f..%%2fsecret.png", id), nil))
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}
