package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

const testSession = "session-1"

func seedApplication(t *testing.T, st store.Store, sender, subject string) int64 {
	t.Helper()
	id, err := st.AddEmailRecord(models.EmailRecord{
		SessionID: testSession,
		Subject:   subject,
		Sender:    sender,
		Recipient: "hr@example.com",
		Date:      time.Now(),
		Body:      "application body",
		EmailType: models.EmailTypeJobApplication,
	})
	if err != nil {
		t.Fatalf("failed to seed application: %v", err)
	}
	return id
}

// screeningOracle answers screening prompts with the scripted verdict and all
// other prompts with a summary sentence.
func screeningOracle(verdict string) *fakeOracle {
	return &fakeOracle{generate: func(systemPrompt, _ string) (string, error) {
		if strings.Contains(systemPrompt, "screening assistant") {
			return verdict, nil
		}
		return "Summary of the screening run.", nil
	}}
}

func TestScreeningValidVerdictPersisted(t *testing.T) {
	st := store.NewInMemoryStore()
	seedApplication(t, st, "MJ D <mj@example.com>", "Application for Backend Engineer")

	oracle := screeningOracle(`{"screening_status": "shortlisted", "reason": "skill match"}`)
	pipeline := NewScreeningPipeline(oracle, st)

	summary, err := pipeline.Run(context.Background(), testSession, "Backend Engineer, Go required")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Total != 1 || summary.Shortlisted != 1 || summary.Rejected != 0 {
		t.Errorf("unexpected counts: %+v", summary)
	}

	verdicts, err := st.ListScreeningVerdicts(testSession, models.StatusShortlisted, models.ReasonSkillMatch)
	if err != nil {
		t.Fatalf("ListScreeningVerdicts: %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("expected 1 persisted verdict, got %d", len(verdicts))
	}
	if verdicts[0].CandidateEmail != "mj@example.com" {
		t.Errorf("expected normalized candidate email, got %q", verdicts[0].CandidateEmail)
	}
	if verdicts[0].CandidateName != "MJ D" {
		t.Errorf("expected candidate name from sender header, got %q", verdicts[0].CandidateName)
	}
}

func TestScreeningInvalidStatusCoerced(t *testing.T) {
	st := store.NewInMemoryStore()
	seedApplication(t, st, "a@example.com", "Application")

	// Status is out of vocabulary even though the reason is valid.
	oracle := screeningOracle(`{"screening_status": "maybe", "reason": "skill match"}`)
	pipeline := NewScreeningPipeline(oracle, st)

	summary, err := pipeline.Run(context.Background(), testSession, "job description")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Rejected != 1 {
		t.Errorf("expected coerced verdict to count as rejected, got %+v", summary)
	}

	verdicts, err := st.ListScreeningVerdicts(testSession, models.StatusRejected, models.ReasonErrorProcessing)
	if err != nil {
		t.Fatalf("ListScreeningVerdicts: %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("expected coerced verdict persisted as rejected/error processing, got %d rows", len(verdicts))
	}
}

func TestScreeningOracleFailureDoesNotAbortLoop(t *testing.T) {
	st := store.NewInMemoryStore()
	seedApplication(t, st, "first@example.com", "Application 1")
	seedApplication(t, st, "second@example.com", "Application 2")

	var screenCalls int
	oracle := &fakeOracle{generate: func(systemPrompt, _ string) (string, error) {
		if strings.Contains(systemPrompt, "screening assistant") {
			screenCalls++
			if screenCalls == 1 {
				return "", fmt.Errorf("request timed out")
			}
			return `{"screening_status": "shortlisted", "reason": "skill match"}`, nil
		}
		return "Summary.", nil
	}}
	pipeline := NewScreeningPipeline(oracle, st)

	summary, err := pipeline.Run(context.Background(), testSession, "job description")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Total != 2 {
		t.Fatalf("expected both applications processed, got %d", summary.Total)
	}
	if summary.Rejected != 1 || summary.Shortlisted != 1 {
		t.Errorf("expected one coerced rejection and one shortlist, got %+v", summary)
	}
}

func TestScreeningVerdictsAppendOnly(t *testing.T) {
	st := store.NewInMemoryStore()
	seedApplication(t, st, "a@example.com", "Application")

	oracle := screeningOracle(`{"screening_status": "rejected", "reason": "skill mismatch"}`)
	pipeline := NewScreeningPipeline(oracle, st)

	for i := 0; i < 2; i++ {
		if _, err := pipeline.Run(context.Background(), testSession, "job description"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	verdicts, err := st.ListScreeningVerdicts(testSession, models.StatusRejected, models.ReasonSkillMismatch)
	if err != nil {
		t.Fatalf("ListScreeningVerdicts: %v", err)
	}
	if len(verdicts) != 2 {
		t.Errorf("expected rerun to append a second verdict, got %d rows", len(verdicts))
	}
}

func TestScreeningSummaryFallback(t *testing.T) {
	st := store.NewInMemoryStore()
	seedApplication(t, st, "a@example.com", "Application")

	oracle := &fakeOracle{generate: func(systemPrompt, _ string) (string, error) {
		if strings.Contains(systemPrompt, "screening assistant") {
			return `{"screening_status": "shortlisted", "reason": "skill match"}`, nil
		}
		return "", fmt.Errorf("request timed out")
	}}
	pipeline := NewScreeningPipeline(oracle, st)

	summary, err := pipeline.Run(context.Background(), testSession, "job description")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := "Screening complete: 1 applications processed, 1 shortlisted, 0 rejected."
	if summary.FinalSummary != want {
		t.Errorf("fallback summary = %q, want %q", summary.FinalSummary, want)
	}
}

func TestScreeningNoApplications(t *testing.T) {
	st := store.NewInMemoryStore()
	oracle := &fakeOracle{generate: func(_, _ string) (string, error) {
		t.Fatal("oracle must not be consulted when there are no applications")
		return "", nil
	}}
	pipeline := NewScreeningPipeline(oracle, st)

	summary, err := pipeline.Run(context.Background(), testSession, "job description")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Total != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
	if summary.FinalSummary != "No job application emails found to screen." {
		t.Errorf("unexpected summary text %q", summary.FinalSummary)
	}
}

// TestScreeningVerdictAlwaysInVocabulary checks that whatever the oracle
// returns, the persisted verdict is either a fully valid pair or the coerced
// rejected/error-processing pair.
func TestScreeningVerdictAlwaysInVocabulary(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := rapid.OneOf(
			rapid.SampledFrom([]string{"shortlisted", "rejected", "maybe", "SHORTLISTED", ""}),
			rapid.String(),
		).Draw(t, "status")
		reason := rapid.OneOf(
			rapid.SampledFrom([]string{"skill match", "skill mismatch", "wrong application", "error processing", "vibes", ""}),
			rapid.String(),
		).Draw(t, "reason")

		st := store.NewInMemoryStore()
		_, err := st.AddEmailRecord(models.EmailRecord{
			SessionID: testSession,
			Sender:    "a@example.com",
			Date:      time.Now(),
			EmailType: models.EmailTypeJobApplication,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}

		verdictJSON := fmt.Sprintf(`{"screening_status": %q, "reason": %q}`, status, reason)
		pipeline := NewScreeningPipeline(screeningOracle(verdictJSON), st)
		summary, err := pipeline.Run(context.Background(), testSession, "job description")
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		if summary.Total != 1 {
			t.Fatalf("expected one processed application, got %d", summary.Total)
		}

		item := summary.Items[0]
		if !models.IsValidScreeningStatus(item.Status) {
			t.Fatalf("persisted status %q out of vocabulary", item.Status)
		}
		validPair := models.IsValidScreeningReason(item.Reason)
		coercedPair := item.Status == models.StatusRejected && item.Reason == models.ReasonErrorProcessing
		if !validPair && !coercedPair {
			t.Fatalf("persisted pair {%s, %s} is neither valid nor the coerced pair", item.Status, item.Reason)
		}
	})
}
