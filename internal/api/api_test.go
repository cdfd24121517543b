package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/TalentPipe/internal/flow"
	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

// stubOracle answers classifier prompts with "general" and everything else
// with a fixed reply.
type stubOracle struct{}

func (stubOracle) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.Contains(systemPrompt, "message classifier") {
		return "general", nil
	}
	return "Happy to help.", nil
}

func (stubOracle) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return "Happy to help.", nil
}

// stubSender accepts every send.
type stubSender struct{}

func (stubSender) Send(ctx context.Context, to, subject, body string) error { return nil }

func newTestServer(st store.Store) *Server {
	orchestrator := flow.NewOrchestrator(stubOracle{}, st, stubSender{})
	return NewServer(orchestrator, st)
}

func postTurn(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/turns", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleTurn(t *testing.T) {
	srv := newTestServer(store.NewInMemoryStore())

	rec := postTurn(t, srv, `{"session_id": "s1", "message": "hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string            `json:"status"`
		Result models.TurnResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("unexpected status %q", resp.Status)
	}
	if resp.Result.AIResponse == "" {
		t.Error("expected a non-empty ai_response")
	}
	if resp.Result.Classification != "general" {
		t.Errorf("unexpected classification %q", resp.Result.Classification)
	}
	if resp.Result.SessionID != "s1" {
		t.Errorf("unexpected session id %q", resp.Result.SessionID)
	}
}

func TestHandleTurnValidation(t *testing.T) {
	srv := newTestServer(store.NewInMemoryStore())

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"session_id": `},
		{"missing session", `{"message": "hello"}`},
		{"missing message", `{"session_id": "s1"}`},
		{"whitespace session", `{"session_id": "   ", "message": "hello"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postTurn(t, srv, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp models.APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode error envelope: %v", err)
			}
			if resp.Status != "error" || resp.Message == "" {
				t.Errorf("expected error envelope with message, got %+v", resp)
			}
		})
	}
}

func TestHandleListVerdicts(t *testing.T) {
	st := store.NewInMemoryStore()
	if err := st.AddScreeningVerdict(models.ScreeningVerdict{
		SessionID:      "s1",
		CandidateName:  "Sam Lee",
		CandidateEmail: "sam@example.com",
		Status:         models.StatusRejected,
		Reason:         models.ReasonSkillMismatch,
		CreatedAt:      time.Now(),
	}); err != nil {
		t.Fatalf("seed verdict: %v", err)
	}
	srv := newTestServer(st)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1/verdicts", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string                    `json:"status"`
		Result []models.ScreeningVerdict `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Result) != 1 || resp.Result[0].CandidateEmail != "sam@example.com" {
		t.Errorf("unexpected verdicts %+v", resp.Result)
	}

	// Filtered by pair.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1/verdicts?status=shortlisted&reason=skill+match", nil)
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Result) != 0 {
		t.Errorf("expected no shortlisted verdicts, got %+v", resp.Result)
	}

	// Invalid status filter.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1/verdicts?status=maybe", nil)
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status filter, got %d", rec.Code)
	}
}

func TestHandleListEmails(t *testing.T) {
	st := store.NewInMemoryStore()
	if _, err := st.AddEmailRecord(models.EmailRecord{
		SessionID: "s1",
		Subject:   "Application",
		Sender:    "a@example.com",
		Date:      time.Now(),
		EmailType: models.EmailTypeJobApplication,
	}); err != nil {
		t.Fatalf("seed email: %v", err)
	}
	srv := newTestServer(st)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1/emails?email_type=job_application", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string               `json:"status"`
		Result []models.EmailRecord `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Result) != 1 || resp.Result[0].Subject != "Application" {
		t.Errorf("unexpected emails %+v", resp.Result)
	}

	// Unknown session returns an empty list, not an error.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/unknown/emails", nil)
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown session, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Result) != 0 {
		t.Errorf("expected empty list, got %+v", resp.Result)
	}
}
