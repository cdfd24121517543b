package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/TalentPipe/internal/models"
)

func makeHistory(n int) []models.Turn {
	turns := make([]models.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		turns = append(turns, models.Turn{
			Role:      role,
			Content:   fmt.Sprintf("turn %d", i),
			Timestamp: time.Now(),
		})
	}
	return turns
}

func TestMemoryExtractFreshSessionSkipsOracle(t *testing.T) {
	oracle := &fakeOracle{generate: func(_, _ string) (string, error) {
		t.Fatal("oracle must not be consulted for a fresh session")
		return "", nil
	}}
	extractor := NewMemoryExtractor(oracle)

	for _, n := range []int{0, 1} {
		memCtx := extractor.Extract(context.Background(), makeHistory(n), "hello")
		if memCtx.ConversationSummary != "" || memCtx.RelevantContext != "" {
			t.Errorf("history length %d: expected empty context, got %+v", n, memCtx)
		}
		if memCtx.UserPreferences == nil {
			t.Errorf("history length %d: expected non-nil preferences map", n)
		}
	}
	if oracle.callCount() != 0 {
		t.Errorf("expected 0 oracle calls, got %d", oracle.callCount())
	}
}

func TestMemoryExtractUsesRecentWindow(t *testing.T) {
	var prompt string
	oracle := &fakeOracle{generate: func(_, userPrompt string) (string, error) {
		prompt = userPrompt
		return `{"conversation_summary": "s", "user_preferences": {}, "relevant_context": "r", "session_type": "hr_session", "previous_actions": []}`, nil
	}}
	extractor := NewMemoryExtractor(oracle)

	extractor.Extract(context.Background(), makeHistory(16), "current question")

	if strings.Contains(prompt, "turn 5") {
		t.Error("expected turns outside the recent window to be excluded")
	}
	for i := 6; i < 16; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("turn %d", i)) {
			t.Errorf("expected turn %d inside the recent window", i)
		}
	}
	if !strings.Contains(prompt, "current question") {
		t.Error("expected current message in the extraction prompt")
	}
}

func TestMemoryExtractParsesContext(t *testing.T) {
	oracle := &fakeOracle{generate: func(_, _ string) (string, error) {
		return "```json\n" + `{"conversation_summary": "screened 3 candidates", "user_preferences": {"tone": "formal"}, "relevant_context": "screening done", "session_type": "hr_session", "previous_actions": ["screening"]}` + "\n```", nil
	}}
	extractor := NewMemoryExtractor(oracle)

	memCtx := extractor.Extract(context.Background(), makeHistory(4), "now email them")
	if memCtx.ConversationSummary != "screened 3 candidates" {
		t.Errorf("unexpected summary %q", memCtx.ConversationSummary)
	}
	if memCtx.SessionType != "hr_session" {
		t.Errorf("unexpected session type %q", memCtx.SessionType)
	}
	if tone, ok := memCtx.UserPreferences["tone"]; !ok || tone != "formal" {
		t.Errorf("unexpected preferences %v", memCtx.UserPreferences)
	}
	if len(memCtx.PreviousActions) != 1 || memCtx.PreviousActions[0] != "screening" {
		t.Errorf("unexpected previous actions %v", memCtx.PreviousActions)
	}
}

func TestMemoryExtractFallbackOnOracleFailure(t *testing.T) {
	oracle := &fakeOracle{generate: func(_, _ string) (string, error) {
		return "", fmt.Errorf("request timed out")
	}}
	extractor := NewMemoryExtractor(oracle)

	memCtx := extractor.Extract(context.Background(), makeHistory(4), "now email them")
	if memCtx.ConversationSummary != "Ongoing HR session" {
		t.Errorf("unexpected fallback summary %q", memCtx.ConversationSummary)
	}
	want := "Previous conversation context available. Current: now email them"
	if memCtx.RelevantContext != want {
		t.Errorf("fallback context = %q, want %q", memCtx.RelevantContext, want)
	}
}

func TestMemoryExtractFallbackOnMalformedJSON(t *testing.T) {
	oracle := &fakeOracle{generate: func(_, _ string) (string, error) {
		return "I could not produce JSON this time.", nil
	}}
	extractor := NewMemoryExtractor(oracle)

	memCtx := extractor.Extract(context.Background(), makeHistory(4), "hello")
	if memCtx.ConversationSummary != "Ongoing HR session" {
		t.Errorf("expected fallback context, got summary %q", memCtx.ConversationSummary)
	}
}
