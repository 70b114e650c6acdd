package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/app"
	"github.com/shrimpsizemoose/overdue/internal/models"
)

type SubmissionHandler struct {
	service *app.Service
}

func NewSubmissionHandler(service *app.Service) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
	}
}

type finishRequest struct {
	StartedAt  int64   `json:"started_at"`
	FinishedAt int64   `json:"finished_at"`
	RawScore   float64 `json:"raw_score"`
}

type regradeRequest struct {
	RawScore *float64 `json:"raw_score"`
}

// HandleFinish takes the host's finish event for one submission. The user is
// the one named in the user id header and must hold a valid token.
func (h *SubmissionHandler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	assessment := r.PathValue("assessment")
	submission := r.PathValue("submission")
	if assessment == "" || submission == "" {
		logger.Error.Printf("Failed to extract assessment/submission from path: %s", r.URL.Path)
		http.Error(w, "Invalid assessment or submission", http.StatusBadRequest)
		return
	}

	user := r.Header.Get(h.service.Config.API.UserIDHeader)
	if user == "" {
		http.Error(w, "Invalid user id specified", http.StatusUnauthorized)
		return
	}

	if err := h.service.ValidateAuthAndUser(r, user); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error.Printf("Failed to read request body: %v", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	logger.Debug.Printf("Received request body: %s", string(body))

	var req finishRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FinishedAt == 0 {
		req.FinishedAt = time.Now().Unix()
	}

	outcome, err := h.service.FinishSubmission(&models.Submission{
		ID:           submission,
		AssessmentID: assessment,
		UserID:       user,
		State:        models.StateFinished,
		StartedAt:    req.StartedAt,
		FinishedAt:   req.FinishedAt,
		RawScore:     req.RawScore,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to process submission")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// HandleRegrade re-evaluates a stored submission, optionally with a new raw score.
func (h *SubmissionHandler) HandleRegrade(w http.ResponseWriter, r *http.Request) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	submission := r.PathValue("submission")
	if submission == "" {
		http.Error(w, "Invalid submission", http.StatusBadRequest)
		return
	}

	var req regradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.service.RegradeSubmission(submission, req.RawScore)
	if err != nil {
		writeServiceError(w, err, "Failed to regrade submission")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *SubmissionHandler) HandlePenalty(w http.ResponseWriter, r *http.Request) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	submission := r.PathValue("submission")

	late, err := h.service.IsLate(submission)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch penalty")
		return
	}
	penalty, err := h.service.Penalty(submission)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch penalty")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"submission_id": submission,
		"late":          late,
		"penalty":       penalty,
	})
}
