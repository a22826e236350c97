package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/orbitalshelf/server/library"
)

// Status reports the sync state of the caller's library: whether the last
// load reached the remote store, the cache size, and outbox counters.
func (h *BooksHandler) Status(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	writeJSON(w, http.StatusOK, svc.Status())
}

type migrateResponse struct {
	Migrated int `json:"migrated"`
}

// Migrate runs the one-time local-to-remote reconciliation on demand and
// reloads the cache afterwards. Safe to call repeatedly: once the remote
// collection holds any document, the migration is a no-op.
func (h *BooksHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	n, err := svc.Migrate(r.Context())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "migration failed")
		return
	}
	svc.Load(r.Context())
	writeJSON(w, http.StatusOK, migrateResponse{Migrated: n})
}

type importRequest struct {
	Text string `json:"text"`
}

// ImportAI parses book JSON pasted from an AI chat into a create payload.
// The client reviews the result before submitting it as a real create.
func (h *BooksHandler) ImportAI(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid json")
		return
	}
	input, err := library.ParseAIJSON(req.Text)
	if err != nil {
		jsonError(w, http.StatusUnprocessableEntity, "could not parse book JSON; paste the AI output again")
		return
	}
	writeJSON(w, http.StatusOK, input)
}
