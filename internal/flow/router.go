package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/TalentPipe/internal/genai"
	"github.com/BTreeMap/TalentPipe/internal/models"
)

const intentClassifierSystemPrompt = `You are a message classifier for an HR assistant.
Classify the user message into exactly one category:
- "hr_email_taskupdate": requests about emails, job applications, candidate screening, or sending candidate communications
- "general": any other question or conversation
Respond with only the category token, nothing else.`

const taskClassifierSystemPrompt = `You are a task classifier for an HR assistant.
The user message concerns HR email work. Classify it into exactly one category:
- "email_fetcher&responder_agent": fetch and summarize recent inbox emails
- "job_applications_emails_summary_agent": summarize job application emails
- "job_application_screening_agent": screen job applications against a job description
- "email_team_agent": send emails to screened candidates
- "other": an HR email request that fits none of the above
Respond with only the category token, nothing else.`

// Router performs the two-stage classification that decides which handler
// serves an inbound message. Stage 1 picks an intent; stage 2 runs only for
// task-intent messages and picks the concrete task.
type Router struct {
	oracle genai.ClientInterface
	retry  bool
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithClassificationRetry enables a single reclassification attempt when a
// stage returns an out-of-vocabulary token. Off by default.
func WithClassificationRetry(enabled bool) RouterOption {
	return func(r *Router) { r.retry = enabled }
}

// NewRouter creates a router backed by the given oracle.
func NewRouter(oracle genai.ClientInterface, opts ...RouterOption) *Router {
	r := &Router{oracle: oracle}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify runs both classification stages for a message. Tokens are matched
// exactly after whitespace trimming and lowercasing; anything outside the
// vocabulary maps to the unknown value for its stage. Oracle failures also map
// to unknown so the turn still terminates with a response.
func (r *Router) Classify(ctx context.Context, message string, memCtx models.MemoryContext) models.ClassificationResult {
	result := models.ClassificationResult{Intent: r.classifyIntent(ctx, message, memCtx)}
	if result.Intent == models.IntentTask {
		result.Task = r.classifyTask(ctx, message, memCtx)
	}
	slog.Debug("Router.Classify: classification complete", "intent", result.Intent, "task", result.Task)
	return result
}

func (r *Router) classifyIntent(ctx context.Context, message string, memCtx models.MemoryContext) models.Intent {
	userPrompt := buildClassifierPrompt(message, memCtx)

	raw, err := r.oracle.GeneratePrompt(ctx, intentClassifierSystemPrompt, userPrompt)
	if err != nil {
		slog.Warn("Router.classifyIntent: oracle call failed", "error", err)
		return models.IntentUnknown
	}

	intent := models.ParseIntent(normalizeToken(raw))
	if intent == models.IntentUnknown {
		slog.Warn("Router.classifyIntent: out-of-vocabulary token", "token", normalizeToken(raw))
		if r.retry {
			if raw, err = r.oracle.GeneratePrompt(ctx, intentClassifierSystemPrompt, userPrompt); err == nil {
				intent = models.ParseIntent(normalizeToken(raw))
			}
		}
	}
	return intent
}

func (r *Router) classifyTask(ctx context.Context, message string, memCtx models.MemoryContext) models.Task {
	userPrompt := buildClassifierPrompt(message, memCtx)

	raw, err := r.oracle.GeneratePrompt(ctx, taskClassifierSystemPrompt, userPrompt)
	if err != nil {
		slog.Warn("Router.classifyTask: oracle call failed", "error", err)
		return models.TaskUnknown
	}

	task := models.ParseTask(normalizeToken(raw))
	if task == models.TaskUnknown {
		slog.Warn("Router.classifyTask: out-of-vocabulary token", "token", normalizeToken(raw))
		if r.retry {
			if raw, err = r.oracle.GeneratePrompt(ctx, taskClassifierSystemPrompt, userPrompt); err == nil {
				task = models.ParseTask(normalizeToken(raw))
			}
		}
	}
	return task
}

// buildClassifierPrompt attaches memory context to the message so follow-up
// phrasing like "do that again" still classifies correctly.
func buildClassifierPrompt(message string, memCtx models.MemoryContext) string {
	var b strings.Builder
	if memCtx.ConversationSummary != "" {
		fmt.Fprintf(&b, "Conversation summary: %s\n", memCtx.ConversationSummary)
	}
	if len(memCtx.PreviousActions) > 0 {
		if actions, err := json.Marshal(memCtx.PreviousActions); err == nil {
			fmt.Fprintf(&b, "Previous actions: %s\n", actions)
		}
	}
	fmt.Fprintf(&b, "Message: %s", message)
	return b.String()
}

// normalizeToken trims whitespace and surrounding quotes and lowercases a
// classifier token. Matching stays exact beyond that.
func normalizeToken(raw string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"'`))
}
