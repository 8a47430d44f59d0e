package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitorvargasdev/streamfluency/internal/vocabulary"
)

type VocabularyHandler struct {
	store *vocabulary.Store
}

func NewVocabularyHandler(store *vocabulary.Store) *VocabularyHandler {
	return &VocabularyHandler{store: store}
}

// ListItems returns items matching the optional search, date, video and sort query params
func (h *VocabularyHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := vocabulary.Filter{
		Search: q.Get("search"),
		Date:   vocabulary.DateFilter(q.Get("date")),
		Video:  q.Get("video"),
		Sort:   vocabulary.SortOption(q.Get("sort")),
	}
	if lang := q.Get("language"); lang != "" {
		jsonResponse(w, vocabulary.ApplyFilter(h.store.ByLanguage(lang), f, timeNow()), http.StatusOK)
		return
	}
	jsonResponse(w, h.store.Filter(f), http.StatusOK)
}

func (h *VocabularyHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var draft vocabulary.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	item, err := h.store.AddItem(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, item, http.StatusCreated)
}

func (h *VocabularyHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch vocabulary.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	item, err := h.store.UpdateItem(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, item, http.StatusOK)
}

func (h *VocabularyHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VocabularyHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Exists reports whether text (with the optional context param) is already saved
func (h *VocabularyHandler) Exists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("text")
	if text == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}
	var line *string
	if q.Has("context") {
		c := q.Get("context")
		line = &c
	}
	jsonResponse(w, map[string]bool{"exists": h.store.CheckIfExists(text, line)}, http.StatusOK)
}

func (h *VocabularyHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.store.UniqueVideos(), http.StatusOK)
}

// LastError exposes the user-facing error left by a failed save
func (h *VocabularyHandler) LastError(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"error": h.store.LastError()}, http.StatusOK)
}
