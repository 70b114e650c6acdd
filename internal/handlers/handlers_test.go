package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/overdue/internal/app"
	"github.com/shrimpsizemoose/overdue/internal/metrics"
	"github.com/shrimpsizemoose/overdue/internal/store/sqlite"
)

const testConfig = `
[server]
port = ":0"

[api]
user_id_header = "X-User-ID"

[[api.required_headers]]
name = "X-Source"
value = "lms"

[calendar]
holidays = ["05/12/2022", "07/12/2022"]
`

var dueAt = time.Date(2022, 11, 28, 23, 59, 0, 0, time.UTC).Unix()

func setupRouter(t *testing.T) (http.Handler, *app.Service) {
	cfg, err := app.ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	st, err := sqlite.NewSQLiteStore(":memory:", "../../migrations")
	require.NoError(t, err)

	service := app.NewServiceWith(cfg, st, nil)
	t.Cleanup(func() { service.Close() })

	return NewRouter(service), service
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Source", "lms")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func putPolicy(t *testing.T, h http.Handler) {
	body := `{"due_at": ` + jsonInt(dueAt) + `, "daily_percentage": 5, "max_percentage": 25}`
	rec := do(t, h, "PUT", "/api/v1/assessments/quiz1/policy", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestPolicyEndpoints(t *testing.T) {
	h, _ := setupRouter(t)

	rec := do(t, h, "GET", "/api/v1/assessments/quiz1/policy", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	putPolicy(t, h)

	rec = do(t, h, "GET", "/api/v1/assessments/quiz1/policy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	policy := decode(t, rec)
	assert.Equal(t, "quiz1", policy["assessment_id"])
	assert.EqualValues(t, 5, policy["daily_percentage"])
	assert.Equal(t, true, policy["applied_penalty"], "site default applies")
	assert.Equal(t, true, policy["prevent_resubmission"], "site default applies")

	rec = do(t, h, "PUT", "/api/v1/assessments/quiz1/policy", `{"daily_percentage": 150}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "PUT", "/api/v1/assessments/quiz1/policy", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "DELETE", "/api/v1/assessments/quiz1/policy", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, "DELETE", "/api/v1/assessments/quiz1/policy", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequiredHeaders(t *testing.T) {
	h, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/assessments/quiz1/policy", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest("POST", "/api/v1/assessments/quiz1/submissions/s1/finish", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFinishAndPenalty(t *testing.T) {
	h, service := setupRouter(t)
	putPolicy(t, h)

	finishedAt := time.Date(2022, 11, 30, 0, 0, 0, 0, time.UTC).Unix()

	rec := do(t, h, "POST", "/api/v1/assessments/quiz1/submissions/s1/finish",
		`{"finished_at": `+jsonInt(finishedAt)+`, "raw_score": 50}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "user header is required")

	rec = do(t, h, "POST", "/api/v1/assessments/quiz1/submissions/s1/finish",
		`{"finished_at": `+jsonInt(finishedAt)+`, "raw_score": 50}`, map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	outcome := decode(t, rec)
	assert.Equal(t, "create", outcome["action"])
	assert.Equal(t, true, outcome["late"])
	assert.EqualValues(t, 10, outcome["penalty"])
	assert.InDelta(t, 45.0, outcome["adjusted_score"], 1e-9)

	rec = do(t, h, "GET", "/api/v1/submissions/s1/penalty", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	penalty := decode(t, rec)
	assert.Equal(t, true, penalty["late"])
	assert.EqualValues(t, 10, penalty["penalty"])

	rec = do(t, h, "GET", "/api/v1/submissions/unknown/penalty", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["penalty"])

	sub, err := service.Store.GetSubmission("s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sub.UserID)
}

func TestRegradeEndpoints(t *testing.T) {
	h, _ := setupRouter(t)
	putPolicy(t, h)

	finishedAt := time.Date(2022, 11, 29, 0, 0, 0, 0, time.UTC).Unix()
	rec := do(t, h, "POST", "/api/v1/assessments/quiz1/submissions/s1/finish",
		`{"finished_at": `+jsonInt(finishedAt)+`, "raw_score": 50}`, map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "POST", "/api/v1/submissions/s1/regrade", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "update", decode(t, rec)["action"])

	rec = do(t, h, "POST", "/api/v1/submissions/s1/regrade", `{"raw_score": 20}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 19.0, decode(t, rec)["adjusted_score"], 1e-9)

	rec = do(t, h, "POST", "/api/v1/submissions/missing/regrade", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "POST", "/api/v1/assessments/quiz1/regrade", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode(t, rec)["rows"].([]interface{})
	assert.Len(t, rows, 1)
}

func TestAccessDescriptionReport(t *testing.T) {
	h, _ := setupRouter(t)
	putPolicy(t, h)

	onTime := time.Date(2022, 11, 28, 12, 0, 0, 0, time.UTC).Unix()
	rec := do(t, h, "POST", "/api/v1/assessments/quiz1/submissions/s1/finish",
		`{"finished_at": `+jsonInt(onTime)+`, "raw_score": 50}`, map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "GET", "/api/v1/assessments/quiz1/access?user=u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	access := decode(t, rec)
	assert.Equal(t, false, access["allowed"])
	assert.NotEmpty(t, access["reason"])

	rec = do(t, h, "GET", "/api/v1/assessments/quiz1/access?user=u2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["allowed"])

	rec = do(t, h, "GET", "/api/v1/assessments/quiz1/access", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "GET", "/api/v1/assessments/quiz1/description", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["description"], "Already due since")

	rec = do(t, h, "GET", "/api/v1/assessments/quiz1/report", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode(t, rec)["rows"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "No", rows[0].(map[string]interface{})["late"])
}

func TestWithRequestIDKeepsIncoming(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRouteLabel(t *testing.T) {
	req := httptest.NewRequest("GET", "/random/abc", nil)
	assert.Equal(t, "unmatched", routeLabel(req))

	req.Pattern = "GET /api/v1/submissions/{submission}/penalty"
	assert.Equal(t, "GET /api/v1/submissions/{submission}/penalty", routeLabel(req))
}

func TestMetricsUnmatchedPathsShareSeries(t *testing.T) {
	h, _ := setupRouter(t)

	rec := do(t, h, "GET", "/random/first", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	before := testutil.CollectAndCount(metrics.APIRequestDuration)

	for _, path := range []string{"/random/second", "/random/third/deeper", "/x?y=z"} {
		rec = do(t, h, "GET", path, "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, before, testutil.CollectAndCount(metrics.APIRequestDuration))

	rec = do(t, h, "GET", "/api/v1/submissions/s1/penalty", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, "GET", "/api/v1/submissions/s2/penalty", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	afterMatched := testutil.CollectAndCount(metrics.APIRequestDuration)
	assert.LessOrEqual(t, afterMatched, before+1, "both ids map to one pattern")
}
