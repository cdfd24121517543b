package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/BTreeMap/TalentPipe/internal/genai"
	"github.com/BTreeMap/TalentPipe/internal/mail"
	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

const targetIdentifierSystemPrompt = `You are a campaign target identifier for an HR assistant.
The user wants to email screened candidates. Decide which cohort they mean:
- "wrong application": candidates rejected for applying to the wrong role
- "skill mismatch": candidates rejected for missing required skills
- "skill match": shortlisted candidates
Respond with only the cohort token, nothing else.`

const emailGeneratorSystemPrompt = `You are an HR email writer. Write a short, professional email to the candidate about the outcome of their application.
Respond with only a JSON object with exactly these keys:
- "subject": the email subject line
- "body": the plain-text email body, addressed to the candidate by name`

const campaignReportSystemPrompt = `You are an HR assistant. Write a short report of a completed email campaign from the per-candidate outcomes.
Respond with only a JSON object with exactly these keys:
- "message": a concise summary of what was sent and to whom
- "next_tasks": an array of up to three short follow-up suggestions`

// Fallback email template used when personalized generation fails. Sending
// proceeds with this content rather than skipping the candidate.
const (
	fallbackSubjectPrefix = "Application Update - "
	fallbackBodyTemplate  = "Dear %s,\n\nThank you for your application.\n\nBest regards,\nHR Team"
)

// campaignNextTasks is the fixed follow-up list used when report generation
// falls back.
var campaignNextTasks = []string{
	"Review the campaign outcomes",
	"Follow up with candidates who did not receive an email",
	"Check screening results for remaining cohorts",
}

// CampaignWorkflow runs the outbound email campaign: identify the target
// cohort, resolve candidates from stored verdicts, send one email per
// candidate, and report the outcome.
type CampaignWorkflow struct {
	oracle        genai.ClientInterface
	store         store.Store
	sender        mail.Sender
	notifier      mail.Notifier
	defaultTarget models.TargetKey
}

// CampaignOption configures a CampaignWorkflow.
type CampaignOption func(*CampaignWorkflow)

// WithDefaultTarget sets the cohort used when target identification is
// ambiguous or fails. Invalid keys are ignored.
func WithDefaultTarget(target models.TargetKey) CampaignOption {
	return func(w *CampaignWorkflow) {
		if models.IsValidTargetKey(target) {
			w.defaultTarget = target
		}
	}
}

// WithNotifier attaches an operator notifier that receives a short summary
// after each campaign run. Notification failures never affect the result.
func WithNotifier(n mail.Notifier) CampaignOption {
	return func(w *CampaignWorkflow) { w.notifier = n }
}

// NewCampaignWorkflow creates a campaign workflow. The default target cohort
// is skill mismatch unless overridden.
func NewCampaignWorkflow(oracle genai.ClientInterface, st store.Store, sender mail.Sender, opts ...CampaignOption) *CampaignWorkflow {
	w := &CampaignWorkflow{
		oracle:        oracle,
		store:         st,
		sender:        sender,
		defaultTarget: models.TargetSkillMismatch,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes the campaign for a session. Store failures abort the run; any
// other failure degrades per candidate so that every resolved candidate is
// accounted for as either sent or failed.
func (w *CampaignWorkflow) Run(ctx context.Context, sessionID, userMessage string) (*models.CampaignResult, error) {
	result := &models.CampaignResult{RunID: uuid.NewString()}
	result.TargetKey = w.identifyTarget(ctx, userMessage)
	slog.Info("CampaignWorkflow.Run: target identified", "sessionID", sessionID, "runID", result.RunID, "target", result.TargetKey)

	candidates, err := w.resolveCandidates(sessionID, result.TargetKey)
	if err != nil {
		return nil, err
	}
	result.CandidatesFound = len(candidates)

	if len(candidates) == 0 {
		result.Success = false
		result.Message = fmt.Sprintf("No %s candidates found in database.", result.TargetKey)
		result.NextTasks = []string{"Check screening results", "Review applications"}
		slog.Info("CampaignWorkflow.Run: no candidates, skipping send stage", "sessionID", sessionID, "target", result.TargetKey)
		return result, nil
	}

	for _, c := range candidates {
		outcome := w.sendOne(ctx, c)
		if outcome.Success {
			result.EmailsSent++
		} else {
			result.EmailsFailed++
		}
		result.PerCandidate = append(result.PerCandidate, outcome)
	}

	result.Success = result.EmailsSent > 0
	result.Message, result.NextTasks = w.report(ctx, result)

	slog.Info("CampaignWorkflow.Run: campaign complete",
		"sessionID", sessionID, "runID", result.RunID, "target", result.TargetKey,
		"found", result.CandidatesFound, "sent", result.EmailsSent, "failed", result.EmailsFailed)

	w.notifyOperator(ctx, result)
	return result, nil
}

// identifyTarget resolves the cohort from the user message via the oracle.
// Matching is by substring on the normalized response; anything unresolvable,
// including an oracle failure, falls back to the configured default.
func (w *CampaignWorkflow) identifyTarget(ctx context.Context, userMessage string) models.TargetKey {
	resp, err := w.oracle.GeneratePrompt(ctx, targetIdentifierSystemPrompt, userMessage)
	if err != nil {
		slog.Warn("CampaignWorkflow.identifyTarget: oracle call failed, using default target", "error", err, "default", w.defaultTarget)
		return w.defaultTarget
	}

	normalized := strings.ReplaceAll(strings.ToLower(resp), "_", " ")
	switch {
	case strings.Contains(normalized, string(models.TargetWrongApplication)):
		return models.TargetWrongApplication
	case strings.Contains(normalized, string(models.TargetSkillMismatch)):
		return models.TargetSkillMismatch
	case strings.Contains(normalized, string(models.TargetSkillMatch)):
		return models.TargetSkillMatch
	}
	slog.Warn("CampaignWorkflow.identifyTarget: unresolvable target, using default", "response", strings.TrimSpace(resp), "default", w.defaultTarget)
	return w.defaultTarget
}

// resolveCandidates loads the verdicts matching the cohort and joins each to
// its original email record. Candidates are deduplicated by normalized email
// address with the newest verdict winning.
func (w *CampaignWorkflow) resolveCandidates(sessionID string, target models.TargetKey) ([]models.Candidate, error) {
	status, reason := target.VerdictFilter()
	verdicts, err := w.store.ListScreeningVerdicts(sessionID, status, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to load screening verdicts: %w", err)
	}

	var candidates []models.Candidate
	seen := make(map[string]int)
	for _, v := range verdicts {
		addr := mail.ExtractAddress(v.CandidateEmail)
		if addr == "" {
			slog.Warn("CampaignWorkflow.resolveCandidates: verdict without usable address skipped", "sessionID", sessionID, "candidate", v.CandidateName)
			continue
		}

		c := models.Candidate{
			Name:               v.CandidateName,
			Email:              addr,
			OriginalBody:       v.Body,
			ResumeText:         v.ResumeText,
			Status:             v.Status,
			Reason:             v.Reason,
			ScreeningTimestamp: v.CreatedAt,
		}
		if rec, err := w.store.FindEmailRecordBySender(sessionID, addr); err != nil {
			slog.Warn("CampaignWorkflow.resolveCandidates: email record lookup failed", "error", err, "candidate", addr)
		} else if rec != nil {
			c.OriginalSubject = rec.Subject
			c.OriginalBody = rec.Body
			c.ApplicationDate = rec.Date
		}

		// Verdicts arrive oldest first, so a repeat address replaces the
		// earlier candidate in place.
		if idx, ok := seen[addr]; ok {
			candidates[idx] = c
			continue
		}
		seen[addr] = len(candidates)
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// emailContentPayload mirrors the JSON contract of the email generator prompt.
type emailContentPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// sendOne generates and sends one candidate email. Generation failures fall
// back to the fixed template; only a send failure marks the outcome failed.
func (w *CampaignWorkflow) sendOne(ctx context.Context, c models.Candidate) models.CandidateOutcome {
	content := w.generateEmail(ctx, c)
	outcome := models.CandidateOutcome{
		Name:    c.Name,
		Email:   c.Email,
		Subject: content.Subject,
	}

	if err := w.sender.Send(ctx, c.Email, content.Subject, content.Body); err != nil {
		slog.Warn("CampaignWorkflow.sendOne: send failed", "error", err, "candidate", c.Email)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Success = true
	return outcome
}

func (w *CampaignWorkflow) generateEmail(ctx context.Context, c models.Candidate) emailContentPayload {
	fallback := emailContentPayload{
		Subject: fallbackSubjectPrefix + c.Name,
		Body:    fmt.Sprintf(fallbackBodyTemplate, c.Name),
	}

	candidate := map[string]string{
		"name":             c.Name,
		"email":            c.Email,
		"screening_status": string(c.Status),
		"reason":           string(c.Reason),
		"original_subject": c.OriginalSubject,
	}
	payload, err := json.Marshal(candidate)
	if err != nil {
		return fallback
	}

	resp, err := w.oracle.GeneratePrompt(ctx, emailGeneratorSystemPrompt, string(payload))
	if err != nil {
		slog.Warn("CampaignWorkflow.generateEmail: oracle call failed, using fallback template", "error", err, "candidate", c.Email)
		return fallback
	}

	var content emailContentPayload
	cleaned := SanitizeJSON(resp)
	if cleaned == "" || json.Unmarshal([]byte(cleaned), &content) != nil ||
		strings.TrimSpace(content.Subject) == "" || strings.TrimSpace(content.Body) == "" {
		slog.Warn("CampaignWorkflow.generateEmail: unusable oracle response, using fallback template", "candidate", c.Email)
		return fallback
	}
	return content
}

// campaignReportPayload mirrors the JSON contract of the report prompt.
type campaignReportPayload struct {
	Message   string   `json:"message"`
	NextTasks []string `json:"next_tasks"`
}

// report produces the user-facing campaign message and follow-up list,
// degrading to a deterministic report built from the recorded outcomes.
func (w *CampaignWorkflow) report(ctx context.Context, result *models.CampaignResult) (string, []string) {
	if payload, err := json.Marshal(result.PerCandidate); err == nil {
		userPrompt := fmt.Sprintf("Target cohort: %s. Candidates: %d, sent: %d, failed: %d.\nOutcomes:\n%s",
			result.TargetKey, result.CandidatesFound, result.EmailsSent, result.EmailsFailed, payload)
		if resp, err := w.oracle.GeneratePrompt(ctx, campaignReportSystemPrompt, userPrompt); err == nil {
			var report campaignReportPayload
			if cleaned := SanitizeJSON(resp); cleaned != "" {
				if json.Unmarshal([]byte(cleaned), &report) == nil && strings.TrimSpace(report.Message) != "" {
					if len(report.NextTasks) == 0 {
						report.NextTasks = campaignNextTasks
					}
					return strings.TrimSpace(report.Message), report.NextTasks
				}
			}
		}
		slog.Warn("CampaignWorkflow.report: report generation failed, using deterministic fallback")
	}
	return fallbackReport(result), campaignNextTasks
}

// fallbackReport builds the deterministic campaign summary: counts plus the
// first five successful recipients by name.
func fallbackReport(result *models.CampaignResult) string {
	var sent []string
	for _, o := range result.PerCandidate {
		if o.Success {
			sent = append(sent, o.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Email campaign for %s candidates finished: %d of %d emails sent",
		result.TargetKey, result.EmailsSent, result.CandidatesFound)
	if result.EmailsFailed > 0 {
		fmt.Fprintf(&b, ", %d failed", result.EmailsFailed)
	}
	b.WriteString(".")

	if len(sent) > 0 {
		named := sent
		if len(named) > 5 {
			named = named[:5]
		}
		fmt.Fprintf(&b, " Sent to: %s", strings.Join(named, ", "))
		if extra := len(sent) - len(named); extra > 0 {
			fmt.Fprintf(&b, " and %d others", extra)
		}
		b.WriteString(".")
	}
	return b.String()
}

// notifyOperator pushes a short campaign summary to the operator when a
// notifier is configured. Failures are logged and otherwise ignored.
func (w *CampaignWorkflow) notifyOperator(ctx context.Context, result *models.CampaignResult) {
	if w.notifier == nil {
		return
	}
	body := fmt.Sprintf("TalentPipe campaign %s (%s): %d found, %d sent, %d failed.",
		result.RunID, result.TargetKey, result.CandidatesFound, result.EmailsSent, result.EmailsFailed)
	if err := w.notifier.Notify(ctx, body); err != nil {
		slog.Warn("CampaignWorkflow.notifyOperator: notification failed", "error", err, "runID", result.RunID)
	}
}
