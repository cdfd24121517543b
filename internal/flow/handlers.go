package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/TalentPipe/internal/genai"
	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

// Fallback responses returned when the oracle is unavailable. Handlers never
// surface a raw transport error to the user.
const (
	generalAnswerFallback = "I'm sorry, something went wrong while answering your question. Please try again."
	inboxSummaryFallback  = "I'm sorry, I couldn't summarize your inbox right now. Please try again."
	jobSummaryFallback    = "I'm sorry, I couldn't summarize the job application emails right now. Please try again."

	noEmailsFoundResponse    = "No emails found for this session."
	noJobEmailsFoundResponse = "No job application emails found."
)

const generalAnswerSystemPrompt = `You are a helpful HR assistant. Answer the user's question directly and concisely.
Use the conversation context when it is relevant.`

const inboxSummarySystemPrompt = `You are an email assistant. The user wants a summary of their recent inbox.
Summarize the provided emails: group by type, call out anything that needs attention, and keep it brief.`

const jobSummarySystemPrompt = `You are an HR assistant. Summarize the provided job application emails:
list each applicant with the role they applied for and any notable details.`

// GeneralHandler answers non-task messages conversationally.
type GeneralHandler struct {
	oracle genai.ClientInterface
}

// NewGeneralHandler creates a general-answer handler.
func NewGeneralHandler(oracle genai.ClientInterface) *GeneralHandler {
	return &GeneralHandler{oracle: oracle}
}

// Handle produces a conversational answer. It always returns a response.
func (h *GeneralHandler) Handle(ctx context.Context, message string, memCtx models.MemoryContext) string {
	resp, err := h.oracle.GeneratePrompt(ctx, generalAnswerSystemPrompt, buildContextualPrompt(message, memCtx))
	if err != nil {
		slog.Warn("GeneralHandler.Handle: oracle call failed", "error", err)
		return generalAnswerFallback
	}
	return strings.TrimSpace(resp)
}

// InboxSummaryHandler summarizes the most recent stored emails for a session.
type InboxSummaryHandler struct {
	oracle genai.ClientInterface
	store  store.Store
}

// NewInboxSummaryHandler creates an inbox summary handler.
func NewInboxSummaryHandler(oracle genai.ClientInterface, st store.Store) *InboxSummaryHandler {
	return &InboxSummaryHandler{oracle: oracle, store: st}
}

// Handle summarizes up to models.RecentTurnWindow recent emails. Store errors
// propagate so the caller can run its failure path; oracle errors degrade to a
// fixed fallback response.
func (h *InboxSummaryHandler) Handle(ctx context.Context, sessionID string) (string, error) {
	records, err := h.store.ListRecentEmailRecords(sessionID, models.RecentTurnWindow)
	if err != nil {
		return "", fmt.Errorf("failed to load recent emails: %w", err)
	}
	if len(records) == 0 {
		return noEmailsFoundResponse, nil
	}

	payload, err := json.Marshal(summarizeEmailRecords(records))
	if err != nil {
		return "", fmt.Errorf("failed to encode emails for summary: %w", err)
	}

	resp, err := h.oracle.GeneratePrompt(ctx, inboxSummarySystemPrompt, string(payload))
	if err != nil {
		slog.Warn("InboxSummaryHandler.Handle: oracle call failed", "error", err, "sessionID", sessionID)
		return inboxSummaryFallback, nil
	}
	return strings.TrimSpace(resp), nil
}

// JobEmailSummaryHandler summarizes stored job application emails.
type JobEmailSummaryHandler struct {
	oracle genai.ClientInterface
	store  store.Store
}

// NewJobEmailSummaryHandler creates a job application email summary handler.
func NewJobEmailSummaryHandler(oracle genai.ClientInterface, st store.Store) *JobEmailSummaryHandler {
	return &JobEmailSummaryHandler{oracle: oracle, store: st}
}

// Handle summarizes the session's job application emails. A session with none
// short-circuits without consulting the oracle.
func (h *JobEmailSummaryHandler) Handle(ctx context.Context, sessionID string) (string, error) {
	records, err := h.store.ListEmailRecords(sessionID, models.EmailTypeJobApplication)
	if err != nil {
		return "", fmt.Errorf("failed to load job application emails: %w", err)
	}
	if len(records) == 0 {
		return noJobEmailsFoundResponse, nil
	}

	payload, err := json.Marshal(summarizeEmailRecords(records))
	if err != nil {
		return "", fmt.Errorf("failed to encode emails for summary: %w", err)
	}

	resp, err := h.oracle.GeneratePrompt(ctx, jobSummarySystemPrompt, string(payload))
	if err != nil {
		slog.Warn("JobEmailSummaryHandler.Handle: oracle call failed", "error", err, "sessionID", sessionID)
		return jobSummaryFallback, nil
	}
	return strings.TrimSpace(resp), nil
}

// emailSummaryItem is the trimmed view of an email handed to the oracle.
type emailSummaryItem struct {
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Date      string `json:"date"`
	EmailType string `json:"email_type"`
	Body      string `json:"body"`
}

const maxSummaryBodyLength = 2000

func summarizeEmailRecords(records []models.EmailRecord) []emailSummaryItem {
	items := make([]emailSummaryItem, 0, len(records))
	for _, r := range records {
		body := r.Body
		if len(body) > maxSummaryBodyLength {
			body = body[:maxSummaryBodyLength]
		}
		items = append(items, emailSummaryItem{
			Subject:   r.Subject,
			Sender:    r.Sender,
			Date:      r.Date.Format("2006-01-02 15:04"),
			EmailType: string(r.EmailType),
			Body:      body,
		})
	}
	return items
}

// buildContextualPrompt prefixes the user message with the extracted memory
// context so answers stay consistent across turns.
func buildContextualPrompt(message string, memCtx models.MemoryContext) string {
	var b strings.Builder
	if memCtx.ConversationSummary != "" {
		fmt.Fprintf(&b, "Conversation so far: %s\n", memCtx.ConversationSummary)
	}
	if memCtx.RelevantContext != "" {
		fmt.Fprintf(&b, "Relevant context: %s\n", memCtx.RelevantContext)
	}
	if len(memCtx.UserPreferences) > 0 {
		if prefs, err := json.Marshal(memCtx.UserPreferences); err == nil {
			fmt.Fprintf(&b, "User preferences: %s\n", prefs)
		}
	}
	fmt.Fprintf(&b, "Question: %s", message)
	return b.String()
}
