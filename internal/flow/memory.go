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

const memoryExtractionSystemPrompt = `You are a memory extraction assistant for an HR conversation system.
Analyze the conversation history and extract structured context as JSON with exactly these keys:
- "conversation_summary": brief summary of what has been discussed
- "user_preferences": object of stable user preferences observed so far
- "relevant_context": context relevant to the current message
- "session_type": one of "hr_session", "general_session", "mixed_session"
- "previous_actions": array of actions already taken in this conversation
Return only the JSON object, no other text.`

// MemoryExtractor distills conversation history into structured context for
// downstream handlers. It never fails a turn: extraction errors degrade to a
// minimal context.
type MemoryExtractor struct {
	oracle genai.ClientInterface
}

// NewMemoryExtractor creates a memory extractor backed by the given oracle.
func NewMemoryExtractor(oracle genai.ClientInterface) *MemoryExtractor {
	return &MemoryExtractor{oracle: oracle}
}

// memoryContextPayload mirrors the JSON contract of the extraction prompt.
type memoryContextPayload struct {
	ConversationSummary string         `json:"conversation_summary"`
	UserPreferences     map[string]any `json:"user_preferences"`
	RelevantContext     string         `json:"relevant_context"`
	SessionType         string         `json:"session_type"`
	PreviousActions     []string       `json:"previous_actions"`
}

// Extract builds a memory context from the recent conversation history.
// Sessions with fewer than two prior turns yield an empty context without
// consulting the oracle.
func (e *MemoryExtractor) Extract(ctx context.Context, history []models.Turn, currentMessage string) models.MemoryContext {
	if len(history) < 2 {
		slog.Debug("MemoryExtractor.Extract: fresh session, skipping extraction", "historyLength", len(history))
		return emptyMemoryContext()
	}

	recent := history
	if len(recent) > models.RecentTurnWindow {
		recent = recent[len(recent)-models.RecentTurnWindow:]
	}

	userPrompt := fmt.Sprintf("Conversation history:\n%s\n\nCurrent message: %s",
		formatTranscript(recent), currentMessage)

	resp, err := e.oracle.GeneratePrompt(ctx, memoryExtractionSystemPrompt, userPrompt)
	if err != nil {
		slog.Warn("MemoryExtractor.Extract: oracle call failed, using fallback context", "error", err)
		return fallbackMemoryContext(currentMessage)
	}

	cleaned := SanitizeJSON(resp)
	if cleaned == "" {
		slog.Warn("MemoryExtractor.Extract: no JSON object in oracle response, using fallback context", "responseLength", len(resp))
		return fallbackMemoryContext(currentMessage)
	}

	var payload memoryContextPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		slog.Warn("MemoryExtractor.Extract: failed to decode context JSON, using fallback context", "error", err)
		return fallbackMemoryContext(currentMessage)
	}

	memCtx := models.MemoryContext{
		ConversationSummary: payload.ConversationSummary,
		UserPreferences:     payload.UserPreferences,
		RelevantContext:     payload.RelevantContext,
		SessionType:         payload.SessionType,
		PreviousActions:     payload.PreviousActions,
	}
	if memCtx.UserPreferences == nil {
		memCtx.UserPreferences = make(map[string]any)
	}
	slog.Debug("MemoryExtractor.Extract: context extracted", "sessionType", memCtx.SessionType, "previousActions", len(memCtx.PreviousActions))
	return memCtx
}

// formatTranscript renders turns as a readable transcript for prompts.
func formatTranscript(turns []models.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case models.RoleUser:
			b.WriteString("User: ")
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString(string(t.Role) + ": ")
		}
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func emptyMemoryContext() models.MemoryContext {
	return models.MemoryContext{
		UserPreferences: make(map[string]any),
		SessionType:     "general_session",
	}
}

func fallbackMemoryContext(currentMessage string) models.MemoryContext {
	return models.MemoryContext{
		ConversationSummary: "Ongoing HR session",
		UserPreferences:     make(map[string]any),
		RelevantContext:     "Previous conversation context available. Current: " + currentMessage,
		SessionType:         "general_session",
	}
}
