package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/orbitalshelf/server/library"
	"github.com/orbitalshelf/server/middleware"
	"github.com/orbitalshelf/server/models"
)

const testSecret = "test-secret"

// memSnapshot is an in-memory library.SnapshotStore.
type memSnapshot struct {
	data map[string][]models.Book
}

func newMemSnapshot() *memSnapshot {
	return &memSnapshot{data: make(map[string][]models.Book)}
}

func (m *memSnapshot) LoadSnapshot(userID string) ([]models.Book, error) {
	return m.data[userID], nil
}

func (m *memSnapshot) SaveSnapshot(userID string, books []models.Book) error {
	m.data[userID] = books
	return nil
}

// newTestRouter wires the book routes the way the server does, running without
// a remote store, and returns a bearer token for user-1.
func newTestRouter(t *testing.T) (chi.Router, string) {
	t.Helper()

	manager := library.NewManager(nil, newMemSnapshot())
	t.Cleanup(manager.Close)

	auth := &AuthHandler{JWTSecret: testSecret}
	books := &BooksHandler{Library: manager}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(testSecret))
			r.Get("/books", books.List)
			r.Post("/books", books.Create)
			r.Get("/books/{id}", books.Get)
			r.Patch("/books/{id}", books.Update)
			r.Delete("/books/{id}", books.Delete)
			r.Post("/books/{id}/logs", books.AddLog)
			r.Get("/tags", books.Tags)
			r.Get("/genres", books.Genres)
			r.Get("/library/status", books.Status)
			r.Post("/library/migrate", books.Migrate)
			r.Post("/import/ai", books.ImportAI)
		})
	})

	token, err := auth.createToken("user-1", "reader@example.com")
	require.NoError(t, err)
	return r, token
}

func doJSON(t *testing.T, r chi.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func createBook(t *testing.T, r chi.Router, token string, body map[string]any) map[string]any {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/api/books", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var book map[string]any
	decodeBody(t, rec, &book)
	return book
}

func TestCreateAndGetBook(t *testing.T) {
	r, token := newTestRouter(t)

	book := createBook(t, r, token, map[string]any{
		"title":      "三体",
		"author":     "劉慈欣",
		"totalPages": 424,
		"tags":       "SF, 中国文学",
	})
	id, _ := book["id"].(string)
	assert.Regexp(t, `^book_\d+_[0-9a-z]{9}$`, id)
	assert.Equal(t, "wish", book["status"], "status defaults when omitted")
	assert.Equal(t, []any{"SF", "中国文学"}, book["tags"], "comma string tags are split")
	assert.Equal(t, float64(0), book["progress"])
	assert.NotEmpty(t, book["createdAt"])

	rec := doJSON(t, r, http.MethodGet, "/api/books/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, "三体", got["title"])

	rec = doJSON(t, r, http.MethodGet, "/api/books/book_0_missing00", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookValidation(t *testing.T) {
	r, token := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/books", token, map[string]any{"author": "no title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/books", token, map[string]any{"title": "t", "status": "abandoned"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/books", token, map[string]any{"title": "t", "rating": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFilters(t *testing.T) {
	r, token := newTestRouter(t)

	createBook(t, r, token, map[string]any{"title": "The Old Man and the Sea", "status": "finished", "tags": []string{"文芸"}})
	createBook(t, r, token, map[string]any{"title": "三体", "status": "reading", "tags": []string{"SF"}})
	createBook(t, r, token, map[string]any{"title": "Seabird Atlas", "status": "wish", "tags": []string{"自然科学"}})

	list := func(path string) []map[string]any {
		rec := doJSON(t, r, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out []map[string]any
		decodeBody(t, rec, &out)
		return out
	}

	assert.Len(t, list("/api/books"), 3)
	assert.Len(t, list("/api/books?status=reading"), 1)
	assert.Len(t, list("/api/books?status=reading,wish"), 2)
	assert.Len(t, list("/api/books?status=all"), 3)
	assert.Len(t, list("/api/books?genre=SF"), 1)

	bySea := list("/api/books?q=sea")
	require.Len(t, bySea, 2)

	both := list("/api/books?status=finished&q=sea")
	require.Len(t, both, 1)
	assert.Equal(t, "The Old Man and the Sea", both[0]["title"])
}

func TestUpdateBook(t *testing.T) {
	r, token := newTestRouter(t)
	book := createBook(t, r, token, map[string]any{"title": "三体"})
	id := book["id"].(string)

	rec := doJSON(t, r, http.MethodPatch, "/api/books/"+id, token, map[string]any{"rating": 5, "notes": "傑作"})
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, float64(5), got["rating"])
	assert.Equal(t, "傑作", got["notes"])
	assert.Equal(t, "三体", got["title"], "untouched fields survive")

	rec = doJSON(t, r, http.MethodPatch, "/api/books/book_0_missing00", token, map[string]any{"rating": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodPatch, "/api/books/"+id, token, map[string]any{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteBook(t *testing.T) {
	r, token := newTestRouter(t)
	book := createBook(t, r, token, map[string]any{"title": "t"})
	id := book["id"].(string)

	rec := doJSON(t, r, http.MethodDelete, "/api/books/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, "/api/books/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddLogCoercesStringPage(t *testing.T) {
	r, token := newTestRouter(t)
	book := createBook(t, r, token, map[string]any{"title": "三体", "totalPages": 424})
	id := book["id"].(string)

	rec := doJSON(t, r, http.MethodPost, "/api/books/"+id+"/logs", token, map[string]any{"page": "424", "memo": "読了"})
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, float64(424), got["currentPage"])
	assert.Equal(t, "finished", got["status"])
	assert.Equal(t, float64(100), got["progress"])

	logs := got["readingLogs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "読了", logs[0].(map[string]any)["memo"])

	rec = doJSON(t, r, http.MethodPost, "/api/books/book_0_missing00/logs", token, map[string]any{"page": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTagsAndGenres(t *testing.T) {
	r, token := newTestRouter(t)
	createBook(t, r, token, map[string]any{"title": "a", "tags": []string{"SF", "翻訳"}})
	createBook(t, r, token, map[string]any{"title": "b", "tags": []string{"ミステリー"}})

	rec := doJSON(t, r, http.MethodGet, "/api/tags", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tags map[string][]string
	decodeBody(t, rec, &tags)
	assert.ElementsMatch(t, []string{"SF", "翻訳", "ミステリー"}, tags["tags"])

	rec = doJSON(t, r, http.MethodGet, "/api/genres", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var genres map[string][]string
	decodeBody(t, rec, &genres)
	assert.ElementsMatch(t, []string{"SF", "ミステリー"}, genres["genres"])
}

func TestLibraryStatusWithoutRemote(t *testing.T) {
	r, token := newTestRouter(t)
	createBook(t, r, token, map[string]any{"title": "t"})

	rec := doJSON(t, r, http.MethodGet, "/api/library/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status library.Status
	decodeBody(t, rec, &status)
	assert.False(t, status.Online)
	assert.Equal(t, 1, status.Books)
}

func TestMigrateWithoutRemote(t *testing.T) {
	r, token := newTestRouter(t)
	rec := doJSON(t, r, http.MethodPost, "/api/library/migrate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	decodeBody(t, rec, &resp)
	assert.Equal(t, 0, resp["migrated"])
}

func TestImportAI(t *testing.T) {
	r, token := newTestRouter(t)

	text := "```json\n{\"title\": \"三体\", \"status\": \"読書中\", \"tags\": \"SF\"}\n```"
	rec := doJSON(t, r, http.MethodPost, "/api/import/ai", token, map[string]any{"text": text})
	require.Equal(t, http.StatusOK, rec.Code)
	var input models.BookInput
	decodeBody(t, rec, &input)
	assert.Equal(t, "三体", input.Title)
	assert.Equal(t, models.StatusReading, input.Status)
	assert.Equal(t, models.TagList{"SF"}, input.Tags)

	rec = doJSON(t, r, http.MethodPost, "/api/import/ai", token, map[string]any{"text": "not json at all"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/books", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsersSeeOnlyTheirOwnBooks(t *testing.T) {
	r, token := newTestRouter(t)
	auth := &AuthHandler{JWTSecret: testSecret}
	otherToken, err := auth.createToken("user-2", "other@example.com")
	require.NoError(t, err)

	createBook(t, r, token, map[string]any{"title": "mine"})

	rec := doJSON(t, r, http.MethodGet, "/api/books", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out []map[string]any
	decodeBody(t, rec, &out)
	assert.Empty(t, out)
}
