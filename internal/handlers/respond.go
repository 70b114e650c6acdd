package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/app"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}

// writeServiceError maps service errors onto status codes. Anything unknown
// is logged and reported as a 500 with the given message.
func writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, app.ErrPolicyNotFound), errors.Is(err, app.ErrSubmissionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, app.ErrInvalidPolicy), errors.Is(err, app.ErrInvalidSubmission):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error.Printf("%s: %v", message, err)
		http.Error(w, message, http.StatusInternalServerError)
	}
}
