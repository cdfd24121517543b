package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/TalentPipe/internal/genai"
	"github.com/BTreeMap/TalentPipe/internal/mail"
	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

const screeningSystemPrompt = `You are a recruitment screening assistant. Evaluate one job application against the job description.
Respond with only a JSON object with exactly these keys:
- "screening_status": "shortlisted" or "rejected"
- "reason": "skill match", "skill mismatch", or "wrong application"
Use "skill match" only with "shortlisted". Use "wrong application" when the candidate applied for a different role than the job description.`

const screeningSummarySystemPrompt = `You are an HR assistant. Write a short summary of a completed screening run.
Mention how many applications were processed, how many were shortlisted, and how many were rejected, then list the shortlisted candidates by name.`

// ScreeningPipeline screens stored job applications against a job description
// and records one verdict per application. Verdicts are append-only: a rerun
// adds new rows rather than updating old ones.
type ScreeningPipeline struct {
	oracle genai.ClientInterface
	store  store.Store
}

// NewScreeningPipeline creates a screening pipeline.
func NewScreeningPipeline(oracle genai.ClientInterface, st store.Store) *ScreeningPipeline {
	return &ScreeningPipeline{oracle: oracle, store: st}
}

// screeningVerdictPayload mirrors the JSON contract of the screening prompt.
type screeningVerdictPayload struct {
	ScreeningStatus string `json:"screening_status"`
	Reason          string `json:"reason"`
}

// Run screens every stored job application email for the session. A failure
// on one application never aborts the loop: the candidate is recorded as
// rejected with the error-processing reason and the loop continues. Store
// failures abort the run.
func (p *ScreeningPipeline) Run(ctx context.Context, sessionID, jobDescription string) (*models.ScreeningSummary, error) {
	records, err := p.store.ListEmailRecords(sessionID, models.EmailTypeJobApplication)
	if err != nil {
		return nil, fmt.Errorf("failed to load job application emails: %w", err)
	}

	summary := &models.ScreeningSummary{}
	for _, rec := range records {
		status, reason := p.screenOne(ctx, rec, jobDescription)

		verdict := models.ScreeningVerdict{
			SessionID:      sessionID,
			CandidateName:  candidateNameFromEmail(rec),
			CandidateEmail: mail.ExtractAddress(rec.Sender),
			Status:         status,
			Reason:         reason,
			ResumeText:     p.resumeText(rec),
			Body:           rec.Body,
			CreatedAt:      time.Now(),
		}
		if err := p.store.AddScreeningVerdict(verdict); err != nil {
			return nil, fmt.Errorf("failed to persist verdict for %s: %w", verdict.CandidateEmail, err)
		}

		summary.Total++
		if status == models.StatusShortlisted {
			summary.Shortlisted++
		} else {
			summary.Rejected++
		}
		summary.Items = append(summary.Items, models.ScreeningItem{
			CandidateName:  verdict.CandidateName,
			CandidateEmail: verdict.CandidateEmail,
			Status:         status,
			Reason:         reason,
		})
		slog.Debug("ScreeningPipeline.Run: verdict recorded", "sessionID", sessionID, "candidate", verdict.CandidateEmail, "status", status, "reason", reason)
	}

	summary.FinalSummary = p.summarize(ctx, summary)
	slog.Info("ScreeningPipeline.Run: screening complete", "sessionID", sessionID, "total", summary.Total, "shortlisted", summary.Shortlisted, "rejected", summary.Rejected)
	return summary, nil
}

// screenOne evaluates a single application. Any oracle failure, unparseable
// response, or out-of-vocabulary value coerces the verdict to rejected with
// the error-processing reason.
func (p *ScreeningPipeline) screenOne(ctx context.Context, rec models.EmailRecord, jobDescription string) (models.ScreeningStatus, models.ScreeningReason) {
	application := map[string]string{
		"subject":     rec.Subject,
		"sender":      rec.Sender,
		"body":        rec.Body,
		"resume_text": p.resumeText(rec),
	}
	payload, err := json.Marshal(application)
	if err != nil {
		slog.Warn("ScreeningPipeline.screenOne: failed to encode application", "error", err, "sender", rec.Sender)
		return models.StatusRejected, models.ReasonErrorProcessing
	}

	userPrompt := fmt.Sprintf("Job description:\n%s\n\nApplication:\n%s", jobDescription, payload)
	resp, err := p.oracle.GeneratePrompt(ctx, screeningSystemPrompt, userPrompt)
	if err != nil {
		slog.Warn("ScreeningPipeline.screenOne: oracle call failed", "error", err, "sender", rec.Sender)
		return models.StatusRejected, models.ReasonErrorProcessing
	}

	cleaned := SanitizeJSON(resp)
	if cleaned == "" {
		slog.Warn("ScreeningPipeline.screenOne: no JSON object in oracle response", "sender", rec.Sender)
		return models.StatusRejected, models.ReasonErrorProcessing
	}

	var verdict screeningVerdictPayload
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		slog.Warn("ScreeningPipeline.screenOne: failed to decode verdict JSON", "error", err, "sender", rec.Sender)
		return models.StatusRejected, models.ReasonErrorProcessing
	}

	status := models.ScreeningStatus(strings.ToLower(strings.TrimSpace(verdict.ScreeningStatus)))
	reason := models.ScreeningReason(strings.ToLower(strings.TrimSpace(verdict.Reason)))
	if !models.IsValidScreeningStatus(status) || !models.IsValidScreeningReason(reason) {
		slog.Warn("ScreeningPipeline.screenOne: out-of-vocabulary verdict", "status", verdict.ScreeningStatus, "reason", verdict.Reason, "sender", rec.Sender)
		return models.StatusRejected, models.ReasonErrorProcessing
	}
	return status, reason
}

// resumeText returns the extracted text of the first attachment carrying any,
// or "" when the application has no usable attachment.
func (p *ScreeningPipeline) resumeText(rec models.EmailRecord) string {
	atts, err := p.store.ListEmailAttachments(rec.ID)
	if err != nil {
		slog.Warn("ScreeningPipeline.resumeText: failed to load attachments", "error", err, "emailID", rec.ID)
		return ""
	}
	for _, a := range atts {
		if strings.TrimSpace(a.ExtractedText) != "" {
			return a.ExtractedText
		}
	}
	return ""
}

// summarize asks the oracle for a narrative summary of the run, falling back
// to a fixed sentence carrying the raw counts.
func (p *ScreeningPipeline) summarize(ctx context.Context, summary *models.ScreeningSummary) string {
	if summary.Total == 0 {
		return "No job application emails found to screen."
	}

	payload, err := json.Marshal(summary.Items)
	if err == nil {
		userPrompt := fmt.Sprintf("Processed: %d, shortlisted: %d, rejected: %d.\nVerdicts:\n%s",
			summary.Total, summary.Shortlisted, summary.Rejected, payload)
		if resp, err := p.oracle.GeneratePrompt(ctx, screeningSummarySystemPrompt, userPrompt); err == nil {
			return strings.TrimSpace(resp)
		}
		slog.Warn("ScreeningPipeline.summarize: oracle call failed, using fallback summary")
	}
	return fmt.Sprintf("Screening complete: %d applications processed, %d shortlisted, %d rejected.",
		summary.Total, summary.Shortlisted, summary.Rejected)
}

// candidateNameFromEmail derives a display name from the sender header,
// preferring the part before an angle-bracketed address.
func candidateNameFromEmail(rec models.EmailRecord) string {
	sender := strings.TrimSpace(rec.Sender)
	if idx := strings.IndexByte(sender, '<'); idx > 0 {
		name := strings.Trim(strings.TrimSpace(sender[:idx]), `"`)
		if name != "" {
			return name
		}
	}
	if addr := mail.ExtractAddress(sender); addr != "" {
		if at := strings.IndexByte(addr, '@'); at > 0 {
			return addr[:at]
		}
	}
	return "Candidate"
}
