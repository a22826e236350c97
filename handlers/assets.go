package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/orbitalshelf/server/service"
)

type AssetsHandler struct {
	Cache *service.AssetCache
}

// Serve streams a client asset through the offline cache: network-first, with
// the last cached copy as fallback.
func (h *AssetsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")
	body, contentType, err := h.Cache.Get(r.Context(), path)
	if err != nil {
		jsonError(w, http.StatusBadGateway, "asset unavailable")
		return
	}
	if body == nil {
		jsonError(w, http.StatusNotFound, "asset not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(body)
}
