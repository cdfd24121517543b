package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

// brokenEmailStore fails every email record read to exercise the error path.
type brokenEmailStore struct {
	store.Store
}

func (s *brokenEmailStore) ListEmailRecords(sessionID string, emailType models.EmailType) ([]models.EmailRecord, error) {
	return nil, fmt.Errorf("database is unreachable")
}

func (s *brokenEmailStore) ListRecentEmailRecords(sessionID string, limit int) ([]models.EmailRecord, error) {
	return nil, fmt.Errorf("database is unreachable")
}

// orchestratorOracle scripts classification plus a canned answer for
// everything else.
func orchestratorOracle(intentToken, taskToken, answer string) *fakeOracle {
	return &fakeOracle{generate: func(systemPrompt, _ string) (string, error) {
		switch {
		case strings.Contains(systemPrompt, "message classifier"):
			return intentToken, nil
		case strings.Contains(systemPrompt, "task classifier"):
			return taskToken, nil
		}
		return answer, nil
	}}
}

func TestOrchestratorGeneralTurn(t *testing.T) {
	st := store.NewInMemoryStore()
	oracle := orchestratorOracle("general", "", "Hello! How can I help?")
	orchestrator := NewOrchestrator(oracle, st, newFakeSender())

	result := orchestrator.ProcessTurn(context.Background(), testSession, "hi there")
	if result.AIResponse != "Hello! How can I help?" {
		t.Errorf("unexpected response %q", result.AIResponse)
	}
	if result.Classification != "general" {
		t.Errorf("unexpected classification %q", result.Classification)
	}
	if result.CurrentAgent != agentGeneral {
		t.Errorf("unexpected agent %q", result.CurrentAgent)
	}
	if result.HasMemory {
		t.Error("fresh session must not report memory")
	}

	history, err := NewStoreBasedStateManager(st).GetHistory(context.Background(), testSession)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user and assistant turns persisted, got %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[1].Role != models.RoleAssistant {
		t.Errorf("unexpected roles %q, %q", history[0].Role, history[1].Role)
	}
}

func TestOrchestratorUnknownIntentTerminates(t *testing.T) {
	oracle := orchestratorOracle("greeting", "", "")
	orchestrator := NewOrchestrator(oracle, store.NewInMemoryStore(), newFakeSender())

	result := orchestrator.ProcessTurn(context.Background(), testSession, "hello")
	if result.AIResponse != unclassifiedResponse {
		t.Errorf("unexpected response %q", result.AIResponse)
	}
	if result.CurrentAgent != agentAnalyzer {
		t.Errorf("unexpected agent %q", result.CurrentAgent)
	}
	if result.Classification != string(models.IntentUnknown) {
		t.Errorf("unexpected classification %q", result.Classification)
	}
}

func TestOrchestratorOtherTaskTerminates(t *testing.T) {
	oracle := orchestratorOracle("hr_email_taskupdate", "other", "")
	orchestrator := NewOrchestrator(oracle, store.NewInMemoryStore(), newFakeSender())

	result := orchestrator.ProcessTurn(context.Background(), testSession, "do something with email")
	if result.AIResponse != unroutedTaskResponse {
		t.Errorf("unexpected response %q", result.AIResponse)
	}
	if result.CurrentAgent != agentTaskAssigner {
		t.Errorf("unexpected agent %q", result.CurrentAgent)
	}
}

func TestOrchestratorJobSummaryShortCircuit(t *testing.T) {
	oracle := orchestratorOracle("hr_email_taskupdate", "job_applications_emails_summary_agent", "should not be used")
	orchestrator := NewOrchestrator(oracle, store.NewInMemoryStore(), newFakeSender())

	result := orchestrator.ProcessTurn(context.Background(), testSession, "summarize the applications")
	if result.AIResponse != noJobEmailsFoundResponse {
		t.Errorf("unexpected response %q", result.AIResponse)
	}
	// Two classification calls only; the summary oracle must not run.
	if oracle.callCount() != 2 {
		t.Errorf("expected 2 oracle calls, got %d", oracle.callCount())
	}
}

func TestOrchestratorStoreFailureYieldsErrorResponse(t *testing.T) {
	st := &brokenEmailStore{Store: store.NewInMemoryStore()}
	oracle := orchestratorOracle("hr_email_taskupdate", "job_application_screening_agent", "")
	orchestrator := NewOrchestrator(oracle, st, newFakeSender())

	result := orchestrator.ProcessTurn(context.Background(), testSession, "screen the applications")
	if result.AIResponse != processingErrorResponse {
		t.Errorf("unexpected response %q", result.AIResponse)
	}
	if result.Classification != "error" || result.TaskClassification != "error_handling" {
		t.Errorf("unexpected error classification %q/%q", result.Classification, result.TaskClassification)
	}
	if result.CurrentAgent != agentErrorHandler {
		t.Errorf("unexpected agent %q", result.CurrentAgent)
	}
}

func TestOrchestratorAlwaysResponds(t *testing.T) {
	// Every collaborator fails and the turn still gets a response.
	st := &brokenEmailStore{Store: store.NewInMemoryStore()}
	oracle := &fakeOracle{generate: func(_, _ string) (string, error) {
		return "", fmt.Errorf("request timed out")
	}}
	orchestrator := NewOrchestrator(oracle, st, newFakeSender())

	result := orchestrator.ProcessTurn(context.Background(), testSession, "hello")
	if result == nil || result.AIResponse == "" {
		t.Fatal("expected a response even when all collaborators fail")
	}
}

func TestOrchestratorSecondTurnHasMemory(t *testing.T) {
	st := store.NewInMemoryStore()
	oracle := orchestratorOracle("general", "", `{"conversation_summary": "greeting", "user_preferences": {}, "relevant_context": "", "session_type": "general_session", "previous_actions": []}`)
	orchestrator := NewOrchestrator(oracle, st, newFakeSender())

	first := orchestrator.ProcessTurn(context.Background(), testSession, "hi")
	if first.HasMemory {
		t.Error("first turn must not report memory")
	}
	second := orchestrator.ProcessTurn(context.Background(), testSession, "what did I just say?")
	if !second.HasMemory {
		t.Error("second turn should report memory from stored history")
	}
}

func TestOrchestratorHistoryCapped(t *testing.T) {
	st := store.NewInMemoryStore()
	states := NewStoreBasedStateManager(st)

	seed := make([]models.Turn, 0, models.MaxHistoryTurns)
	for i := 0; i < models.MaxHistoryTurns; i++ {
		seed = append(seed, models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("old %d", i), Timestamp: time.Now()})
	}
	if err := states.AppendTurns(context.Background(), testSession, seed...); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	oracle := orchestratorOracle("general", "", "ok")
	orchestrator := NewOrchestrator(oracle, st, newFakeSender())
	orchestrator.ProcessTurn(context.Background(), testSession, "one more")

	history, err := states.GetHistory(context.Background(), testSession)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != models.MaxHistoryTurns {
		t.Fatalf("expected history capped at %d turns, got %d", models.MaxHistoryTurns, len(history))
	}
	if history[len(history)-2].Content != "one more" {
		t.Errorf("expected newest user turn retained, got %q", history[len(history)-2].Content)
	}
	if history[0].Content != "old 2" {
		t.Errorf("expected oldest turns trimmed, history starts with %q", history[0].Content)
	}
}
