package handlers

import (
	"context"
	"net/http"

	"github.com/vitorvargasdev/streamfluency/internal/playback"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

type SubtitleHandler struct {
	store   *playback.Store
	refresh func(ctx context.Context)
}

func NewSubtitleHandler(store *playback.Store, refresh func(ctx context.Context)) *SubtitleHandler {
	return &SubtitleHandler{store: store, refresh: refresh}
}

type subtitlesResponse struct {
	playback.Snapshot
	NativeTrack   subtitle.Track `json:"nativeTrack"`
	LearningTrack subtitle.Track `json:"learningTrack"`
}

// GetSubtitles returns both tracks and the resolved current cues
func (h *SubtitleHandler) GetSubtitles(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	jsonResponse(w, subtitlesResponse{
		Snapshot:      snap,
		NativeTrack:   snap.Tracks.Native,
		LearningTrack: snap.Tracks.Learning,
	}, http.StatusOK)
}

func (h *SubtitleHandler) GetCombined(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.store.CombinedRows(), http.StatusOK)
}

func (h *SubtitleHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.refresh(r.Context())
	tracks := h.store.Tracks()
	jsonResponse(w, map[string]int{
		"native":   len(tracks.Native),
		"learning": len(tracks.Learning),
	}, http.StatusOK)
}
