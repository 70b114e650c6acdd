package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/overdue/internal/app"
)

func NewRouter(service *app.Service) http.Handler {
	submissions := NewSubmissionHandler(service)
	assessments := NewAssessmentHandler(service)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/assessments/{assessment}/submissions/{submission}/finish", submissions.HandleFinish)
	mux.HandleFunc("POST /api/v1/submissions/{submission}/regrade", submissions.HandleRegrade)
	mux.HandleFunc("GET /api/v1/submissions/{submission}/penalty", submissions.HandlePenalty)

	mux.HandleFunc("GET /api/v1/assessments/{assessment}/policy", assessments.HandleGetPolicy)
	mux.HandleFunc("PUT /api/v1/assessments/{assessment}/policy", assessments.HandlePutPolicy)
	mux.HandleFunc("DELETE /api/v1/assessments/{assessment}/policy", assessments.HandleDeletePolicy)
	mux.HandleFunc("POST /api/v1/assessments/{assessment}/regrade", assessments.HandleRegrade)
	mux.HandleFunc("GET /api/v1/assessments/{assessment}/access", assessments.HandleAccess)
	mux.HandleFunc("GET /api/v1/assessments/{assessment}/description", assessments.HandleDescription)
	mux.HandleFunc("GET /api/v1/assessments/{assessment}/report", assessments.HandleReport)

	mux.Handle("/metrics", promhttp.Handler())

	return WithRequestID(WithMetrics(mux))
}
