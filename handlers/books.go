package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/orbitalshelf/server/library"
	"github.com/orbitalshelf/server/middleware"
	"github.com/orbitalshelf/server/models"
)

var validate = validator.New()

type BooksHandler struct {
	Library *library.Manager
}

// bookJSON adds the computed read percentage to the stored record.
type bookJSON struct {
	models.Book
	Progress int `json:"progress"`
}

func toBookJSON(b models.Book) bookJSON {
	return bookJSON{Book: b, Progress: library.Progress(&b)}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *BooksHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		jsonError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}

func (h *BooksHandler) service(w http.ResponseWriter, r *http.Request) *library.Service {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return nil
	}
	return h.Library.ForUser(r.Context(), userID)
}

// List returns the filtered, sorted library.
// Query params: status (single value or comma-separated set, "all" bypasses),
// genre (exact match on the first tag), q (case-insensitive substring), sort.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	q := r.URL.Query()
	filter := library.Filter{
		Genre: q.Get("genre"),
		Query: strings.TrimSpace(q.Get("q")),
		Sort:  q.Get("sort"),
	}
	if raw := q.Get("status"); raw != "" {
		filter.Status = models.NormalizeTags(strings.Split(raw, ","))
	}
	books := svc.Books(filter)
	out := make([]bookJSON, 0, len(books))
	for _, b := range books {
		out = append(out, toBookJSON(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	book := svc.GetBook(chi.URLParam(r, "id"))
	if book == nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}
	writeJSON(w, http.StatusOK, toBookJSON(*book))
}

func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	var input models.BookInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(&input); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book: "+err.Error())
		return
	}
	book := svc.AddBook(r.Context(), &input)
	writeJSON(w, http.StatusCreated, toBookJSON(*book))
}

func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	var update models.BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(&update); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid update: "+err.Error())
		return
	}
	book := svc.UpdateBook(r.Context(), chi.URLParam(r, "id"), &update)
	if book == nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}
	writeJSON(w, http.StatusOK, toBookJSON(*book))
}

func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	if !svc.DeleteBook(r.Context(), chi.URLParam(r, "id")) {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addLogRequest struct {
	Page any    `json:"page"`
	Memo string `json:"memo"`
}

// AddLog appends a reading-log entry. The page may arrive as a number or a
// string from form inputs; anything unparseable counts as 0.
func (h *BooksHandler) AddLog(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	var req addLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid json")
		return
	}
	book := svc.AddReadingLog(r.Context(), chi.URLParam(r, "id"), coercePage(req.Page), req.Memo)
	if book == nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}
	writeJSON(w, http.StatusOK, toBookJSON(*book))
}

func coercePage(v any) int {
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && i > 0 {
			return i
		}
	}
	return 0
}

func (h *BooksHandler) Tags(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tags": svc.AllTags()})
}

func (h *BooksHandler) Genres(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"genres": svc.AllGenres()})
}
