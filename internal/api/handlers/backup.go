package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/vitorvargasdev/streamfluency/internal/backup"
)

type BackupHandler struct {
	service *backup.Service
}

func NewBackupHandler(service *backup.Service) *BackupHandler {
	return &BackupHandler{service: service}
}

// Export streams the backup as a download, ?save=true also writes it to the sink
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("save") == "true" {
		path, err := h.service.Save(r.Context(), false)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, map[string]string{"path": path}, http.StatusCreated)
		return
	}

	var buf bytes.Buffer
	if err := h.service.WriteTo(&buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", backup.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backup.Filename(timeNow())))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Import(r.Context(), r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, report, http.StatusOK)
}

func (h *BackupHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.service.AutoConfig(r.Context()), http.StatusOK)
}

func (h *BackupHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	cfg := h.service.AutoConfig(r.Context())
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := h.service.SetAutoConfig(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, cfg, http.StatusOK)
}
