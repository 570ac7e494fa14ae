package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm/stuplan/internal/catalog"
	"github.com/mpm/stuplan/internal/connector"
	"github.com/mpm/stuplan/internal/conversation"
	"github.com/mpm/stuplan/internal/flow"
	"github.com/mpm/stuplan/internal/metrics"
	"github.com/mpm/stuplan/internal/persistence"
	"github.com/mpm/stuplan/internal/planner"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func setupServer(t *testing.T) http.Handler {
	t.Helper()

	dir := catalog.New(
		[]catalog.Program{
			{ID: 12, UniversityID: 1, Name: "Biology", Type: conversation.ProgramMajor, TargetCredits: 60},
			{ID: 3, UniversityID: 1, Name: "General Education", Type: conversation.ProgramGeneralEducation},
		},
		[]catalog.Student{{ID: "user-1", UniversityID: 1, StudentType: conversation.StudentUndergraduate}},
	)

	m := metrics.New()
	processor := flow.NewProcessor(flow.Options{
		Local:     persistence.NewLocalStore(persistence.NewMemoryKV(), persistence.WithClock(testClock)),
		Generator: &planner.DefaultGenerator{Now: testClock},
		Directory: dir,
		Metrics:   m,
		Now:       testClock,
	})
	return NewHandler(processor, m, nil).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func startConversation(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/conversations", `{"userId":"user-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[flow.Response](t, rec)
	return resp.State.ConversationID
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	got := decode[map[string]string](t, w)
	assert.Equal(t, "bar", got["foo"])
}

func TestHealthAndMetrics(t *testing.T) {
	h := setupServer(t)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	startConversation(t, h)
	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stuplan_")
}

func TestStartValidation(t *testing.T) {
	h := setupServer(t)

	rec := do(t, h, http.MethodPost, "/api/conversations", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/conversations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationLifecycle(t *testing.T) {
	h := setupServer(t)
	id := startConversation(t, h)
	base := "/api/conversations/" + id

	rec := do(t, h, http.MethodPost, base+"/tools/profile_check", `{"completed":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[flow.Response](t, rec)
	assert.Equal(t, conversation.StepTranscriptCheck, resp.State.CurrentStep)
	assert.Equal(t, connector.ToolTranscriptCheck, resp.NextTool)

	rec = do(t, h, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[conversationResponse](t, rec)
	assert.Equal(t, id, got.State.ConversationID)
	assert.Equal(t, conversation.StepLabel(conversation.StepTranscriptCheck), got.Progress.CurrentStepLabel)

	rec = do(t, h, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]persistence.Metadata](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ConversationID)

	rec = do(t, h, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteToolErrors(t *testing.T) {
	h := setupServer(t)
	id := startConversation(t, h)
	base := "/api/conversations/" + id

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown tool", base + "/tools/fortune_teller", `{}`, http.StatusBadRequest},
		{"malformed result", base + "/tools/profile_check", `{"completed":`, http.StatusBadRequest},
		{"invalid result", base + "/tools/program_selection", `{"studentType":"undergraduate","programs":{}}`, http.StatusUnprocessableEntity},
		{"wrong step", base + "/tools/course_method", `{"method":"ai"}`, http.StatusConflict},
		{"missing conversation", "/api/conversations/conv_missing/tools/profile_check", `{}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.True(t, strings.Contains(rec.Body.String(), `"error"`))
		})
	}
}

func TestSkip(t *testing.T) {
	h := setupServer(t)
	id := startConversation(t, h)
	base := "/api/conversations/" + id

	rec := do(t, h, http.MethodPost, base+"/skip", `{"tool":"transcript_check"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/skip", `{"tool":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/skip", `{"tool":"career_pathfinder"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "only the current step may be skipped")

	rec = do(t, h, http.MethodPost, base+"/tools/career_pathfinder", `{"inProgress":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/skip", `{"tool":"career_pathfinder"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[flow.Response](t, rec)
	assert.Equal(t, conversation.StepTranscriptCheck, resp.State.CurrentStep)
}

func TestNavigate(t *testing.T) {
	h := setupServer(t)
	id := startConversation(t, h)
	base := "/api/conversations/" + id

	rec := do(t, h, http.MethodPost, base+"/navigate", `{"step":"not_a_step"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/navigate", `{"step":"credit_distribution"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[flow.Response](t, rec)
	assert.NotEmpty(t, resp.Warning)
	assert.Equal(t, conversation.StepInitialize, resp.State.CurrentStep)

	do(t, h, http.MethodPost, base+"/tools/profile_check", `{"completed":true}`)
	rec = do(t, h, http.MethodPost, base+"/navigate", `{"step":"profile_check"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[flow.Response](t, rec)
	assert.Equal(t, conversation.StepProfileCheck, resp.State.CurrentStep)
	assert.Equal(t, connector.ToolProfileCheck, resp.NextTool)
}

func TestGenerateNotReady(t *testing.T) {
	h := setupServer(t)
	id := startConversation(t, h)

	rec := do(t, h, http.MethodPost, "/api/conversations/"+id+"/generate", "")
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}
