package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/orbitalshelf/server/service"
)

type MetadataHandler struct {
	Client *service.MetadataClient
}

// ByISBN looks up a single book by ISBN. Lookup failures degrade to the same
// "no results" the client shows for an unknown ISBN.
func (h *MetadataHandler) ByISBN(w http.ResponseWriter, r *http.Request) {
	result, err := h.Client.FetchByISBN(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		log.Printf("metadata: isbn lookup: %v", err)
		result = nil
	}
	if result == nil {
		jsonError(w, http.StatusNotFound, "no results")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type searchResponse struct {
	Results []service.BookResult `json:"results"`
}

// Search runs a free-text metadata search. Failures are logged and surface as
// an empty result set, never an error page.
func (h *MetadataHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	results, err := h.Client.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		log.Printf("metadata: search: %v", err)
		results = nil
	}
	if results == nil {
		results = []service.BookResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}
