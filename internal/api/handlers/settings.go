package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitorvargasdev/streamfluency/internal/settings"
)

type SettingsHandler struct {
	store *settings.Store
}

func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

type settingsResponse struct {
	settings.Settings
	FirstTimeUser bool `json:"firstTimeUser"`
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, settingsResponse{
		Settings:      h.store.Get(),
		FirstTimeUser: h.store.IsFirstTimeUser(),
	}, http.StatusOK)
}

func (h *SettingsHandler) SetLanguages(w http.ResponseWriter, r *http.Request) {
	var req settings.Languages
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.SetLanguages(r.Context(), req.Native, req.Learning); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, h.store.Get(), http.StatusOK)
}

func (h *SettingsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	next, err := h.store.Toggle(r.Context(), settings.Toggle(chi.URLParam(r, "toggle")))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, next, http.StatusOK)
}

// SetProviders updates the non-empty fields of the provider selection
func (h *SettingsHandler) SetProviders(w http.ResponseWriter, r *http.Request) {
	var req settings.Providers
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if req.Translation != "" {
		if _, err := h.store.SetTranslationProvider(ctx, req.Translation); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Dictionary != "" {
		if _, err := h.store.SetDictionaryProvider(ctx, req.Dictionary); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.TargetLanguage != "" {
		if _, err := h.store.SetTargetLanguage(ctx, req.TargetLanguage); err != nil {
			writeError(w, err)
			return
		}
	}
	jsonResponse(w, h.store.Get(), http.StatusOK)
}
