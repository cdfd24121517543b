// Package models defines campaign and screening result aggregates.
package models

// CandidateOutcome records the independent result of one campaign send.
type CandidateOutcome struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CampaignResult is the aggregate report of one campaign run. It is built
// incrementally during the run and immutable once returned.
// Invariant: EmailsSent + EmailsFailed == CandidatesFound on completion.
type CampaignResult struct {
	RunID           string             `json:"run_id"`
	TargetKey       TargetKey          `json:"target_key"`
	CandidatesFound int                `json:"candidates_found"`
	EmailsSent      int                `json:"emails_sent"`
	EmailsFailed    int                `json:"emails_failed"`
	PerCandidate    []CandidateOutcome `json:"per_candidate"`
	Success         bool               `json:"success"`
	Message         string             `json:"message"`
	NextTasks       []string           `json:"next_tasks"`
}

// ScreeningItem is one per-candidate row of a screening run's aggregate.
type ScreeningItem struct {
	CandidateName  string          `json:"candidate_name"`
	CandidateEmail string          `json:"candidate_email"`
	Status         ScreeningStatus `json:"screening_status"`
	Reason         ScreeningReason `json:"reason"`
}

// ScreeningSummary is the aggregate outcome of one screening run.
type ScreeningSummary struct {
	Total        int             `json:"total"`
	Shortlisted  int             `json:"shortlisted"`
	Rejected     int             `json:"rejected"`
	Items        []ScreeningItem `json:"items"`
	FinalSummary string          `json:"final_summary"`
}

// MemoryContext is the structured context the memory extractor folds out of
// recent conversation turns for downstream prompts.
type MemoryContext struct {
	ConversationSummary string         `json:"conversation_summary"`
	UserPreferences     map[string]any `json:"user_preferences"`
	RelevantContext     string         `json:"relevant_context"`
	SessionType         string         `json:"session_type"`
	PreviousActions     []string       `json:"previous_actions"`
}
