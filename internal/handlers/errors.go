package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"familyhub/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	respondJSON(w, status, errorResponse{Error: userMsg})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// respondWithServiceError maps service errors onto HTTP statuses. Only
// unexpected failures are logged; their message is not exposed.
func respondWithServiceError(w http.ResponseWriter, err error, action string) {
	var authErr *service.AuthorizationError
	switch {
	case errors.As(err, &authErr):
		respondWithError(w, http.StatusForbidden, authErr.Reason, "", nil)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, ErrNotFound, "", nil)
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error(), "", nil)
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error(), "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to "+action, err)
	}
}

// decodeJSON reads a JSON request body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidBody, "", nil)
		return false
	}
	return true
}
