package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/translate"
)

var timeNow = time.Now

type LookupFunc func(ctx context.Context, text string) translate.Lookup

type LookupHandler struct {
	lookup LookupFunc
}

func NewLookupHandler(lookup LookupFunc) *LookupHandler {
	return &LookupHandler{lookup: lookup}
}

// Lookup translates ?text= and defines it when it is a single word
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}
	jsonResponse(w, h.lookup(r.Context(), text), http.StatusOK)
}
