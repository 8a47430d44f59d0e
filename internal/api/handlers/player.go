package handlers

import (
	"net/http"

	"github.com/vitorvargasdev/streamfluency/internal/playback"
	"github.com/vitorvargasdev/streamfluency/internal/player"
)

type PlayerHandler struct {
	player   *player.Store
	playback *playback.Store
}

func NewPlayerHandler(p *player.Store, pb *playback.Store) *PlayerHandler {
	return &PlayerHandler{player: p, playback: pb}
}

type playerState struct {
	Loaded bool    `json:"loaded"`
	Time   float64 `json:"time"`
	Paused bool    `json:"paused"`
	Rate   float64 `json:"rate,omitempty"`
}

func (h *PlayerHandler) state() playerState {
	st := playerState{
		Loaded: h.player.Loaded(),
		Time:   h.player.CurrentTime(),
		Paused: h.player.IsPaused(),
	}
	if rate, err := h.player.PlaybackRate(); err == nil {
		st.Rate = rate
	}
	return st
}

func (h *PlayerHandler) GetState(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.state(), http.StatusOK)
}

func (h *PlayerHandler) Seek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time *float64 `json:"time"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Time == nil {
		jsonError(w, "time is required", http.StatusBadRequest)
		return
	}
	if err := h.player.SeekTo(*req.Time); err != nil {
		writeError(w, err)
		return
	}
	h.playback.Resolve()
	jsonResponse(w, h.state(), http.StatusOK)
}

func (h *PlayerHandler) Play(w http.ResponseWriter, r *http.Request) {
	if err := h.player.Play(); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, h.state(), http.StatusOK)
}

func (h *PlayerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.player.Pause(); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, h.state(), http.StatusOK)
}

func (h *PlayerHandler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate float64 `json:"rate"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.player.SetPlaybackRate(req.Rate); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, h.state(), http.StatusOK)
}

type NavigationHandler struct {
	store *playback.Store
}

func NewNavigationHandler(store *playback.Store) *NavigationHandler {
	return &NavigationHandler{store: store}
}

func (h *NavigationHandler) move(w http.ResponseWriter, fn func() (playback.Move, error)) {
	mv, err := fn()
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, mv, http.StatusOK)
}

func (h *NavigationHandler) Previous(w http.ResponseWriter, r *http.Request) {
	h.move(w, h.store.GoToPrevious)
}

func (h *NavigationHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.move(w, h.store.GoToNext)
}

func (h *NavigationHandler) Replay(w http.ResponseWriter, r *http.Request) {
	h.move(w, h.store.ReplayCurrent)
}

func (h *NavigationHandler) ToggleLoop(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.ToggleLoop()
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, state, http.StatusOK)
}
