package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
)

func jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code,omitempty"`
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, errorBody{Error: msg}, status)
}

// writes err with the status matching its code
func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	jsonResponse(w, errorBody{Error: err.Error(), Code: code}, StatusFor(code))
}

func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.ParseFailed:
		return http.StatusUnprocessableEntity
	case apperr.FetchFailed:
		return http.StatusBadGateway
	case apperr.StorageQuotaExceeded:
		return http.StatusInsufficientStorage
	case apperr.StaleMessage:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodes a JSON body, false after writing the error response
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
