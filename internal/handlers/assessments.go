package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/app"
)

type AssessmentHandler struct {
	service *app.Service
	now     func() time.Time
}

func NewAssessmentHandler(service *app.Service) *AssessmentHandler {
	return &AssessmentHandler{
		service: service,
		now:     time.Now,
	}
}

func (h *AssessmentHandler) assessment(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return "", false
	}

	assessment := r.PathValue("assessment")
	if assessment == "" {
		logger.Error.Printf("Failed to extract assessment from path: %s", r.URL.Path)
		http.Error(w, "Invalid assessment", http.StatusBadRequest)
		return "", false
	}
	return assessment, true
}

func (h *AssessmentHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	assessment, ok := h.assessment(w, r)
	if !ok {
		return
	}

	policy, err := h.service.GetPolicy(assessment)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch policy")
		return
	}

	writeJSON(w, http.StatusOK, policy)
}

// HandlePutPolicy replaces the policy. Fields missing from the body take the
// site defaults.
func (h *AssessmentHandler) HandlePutPolicy(w http.ResponseWriter, r *http.Request) {
	assessment, ok := h.assessment(w, r)
	if !ok {
		return
	}

	policy := h.service.NewPolicy(assessment)
	if err := json.NewDecoder(r.Body).Decode(policy); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	policy.AssessmentID = assessment

	if err := h.service.SavePolicy(policy); err != nil {
		writeServiceError(w, err, "Failed to save policy")
		return
	}

	writeJSON(w, http.StatusOK, policy)
}

func (h *AssessmentHandler) HandleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	assessment, ok := h.assessment(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePolicy(assessment); err != nil {
		writeServiceError(w, err, "Failed to delete policy")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AssessmentHandler) HandleRegrade(w http.ResponseWriter, r *http.Request) {
	assessment, ok := h.assessment(w, r)
	if !ok {
		return
	}

	outcomes, err := h.service.RegradeAssessment(assessment)
	if err != nil {
		writeServiceError(w, err, "Failed to regrade assessment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": outcomes,
	})
}

func (h *AssessmentHandler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	assessment, ok := h.assessment(w, r)
	if !ok {
		return
	}

	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "Invalid user id specified", http.StatusBadRequest)
		return
	}

	reason, err := h.service.PreventAccess(assessment, user, h.now())
	if err != nil {
		writeServiceError(w, err, "Failed to check access")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"allowed": reason == "",
		"reason":  reason,
	})
}

func (h *AssessmentHandler) HandleDescription(w http.ResponseWriter, r *http.Request) {
	assessment, ok := h.assessment(w, r)
	if !ok {
		return
	}

	text, err := h.service.Describe(assessment, h.now())
	if err != nil {
		writeServiceError(w, err, "Failed to describe policy")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"description": text,
	})
}

func (h *AssessmentHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	assessment, ok := h.assessment(w, r)
	if !ok {
		return
	}

	rows, err := h.service.LatenessReport(assessment)
	if err != nil {
		writeServiceError(w, err, "Failed to build report")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": rows,
	})
}
