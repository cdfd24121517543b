// Package models defines the enumerated classification vocabularies.
//
// Every value the oracle may legally return is enumerated here; anything else
// is out-of-vocabulary and must be coerced or routed to a terminal state by the
// caller. The token spellings match the prompts' fixed vocabularies exactly.
package models

// Intent is the stage-1 classification of an inbound message.
type Intent string

const (
	// IntentTask routes to the stage-2 task classifier.
	IntentTask Intent = "hr_email_taskupdate"
	// IntentGeneral routes to the general-answer handler.
	IntentGeneral Intent = "general"
	// IntentUnknown marks an out-of-vocabulary stage-1 token.
	IntentUnknown Intent = "unknown"
)

// ParseIntent maps an oracle token to an Intent, or IntentUnknown.
func ParseIntent(token string) Intent {
	switch Intent(token) {
	case IntentTask, IntentGeneral:
		return Intent(token)
	default:
		return IntentUnknown
	}
}

// Task is the stage-2 classification selecting a terminal handler.
type Task string

const (
	// TaskFetchSummarize routes to the inbox fetch-and-summarize handler.
	TaskFetchSummarize Task = "email_fetcher&responder_agent"
	// TaskJobEmailSummary routes to the job-application email summary handler.
	TaskJobEmailSummary Task = "job_applications_emails_summary_agent"
	// TaskScreening routes to the screening pipeline.
	TaskScreening Task = "job_application_screening_agent"
	// TaskCampaign routes to the outbound email campaign workflow.
	TaskCampaign Task = "email_team_agent"
	// TaskOther is an in-vocabulary token routing to the terminal state.
	TaskOther Task = "other"
	// TaskUnknown marks an out-of-vocabulary stage-2 token.
	TaskUnknown Task = "unknown"
)

// ParseTask maps an oracle token to a Task, or TaskUnknown.
func ParseTask(token string) Task {
	switch Task(token) {
	case TaskFetchSummarize, TaskJobEmailSummary, TaskScreening, TaskCampaign, TaskOther:
		return Task(token)
	default:
		return TaskUnknown
	}
}

// ClassificationResult holds the outcome of both router stages for one turn.
// Task is set only when Intent == IntentTask.
type ClassificationResult struct {
	Intent Intent `json:"intent"`
	Task   Task   `json:"task,omitempty"`
}

// ScreeningStatus is the binary outcome of screening one application.
type ScreeningStatus string

const (
	// StatusShortlisted marks a candidate selected for follow-up.
	StatusShortlisted ScreeningStatus = "shortlisted"
	// StatusRejected marks a candidate not selected.
	StatusRejected ScreeningStatus = "rejected"
)

// IsValidScreeningStatus checks whether the given status is one of the two
// enumerated values.
func IsValidScreeningStatus(s ScreeningStatus) bool {
	return s == StatusShortlisted || s == StatusRejected
}

// ScreeningReason explains a screening verdict.
type ScreeningReason string

const (
	// ReasonSkillMatch means the candidate's skills match the job description.
	ReasonSkillMatch ScreeningReason = "skill match"
	// ReasonSkillMismatch means the candidate applied for the right role but
	// lacks the required skills.
	ReasonSkillMismatch ScreeningReason = "skill mismatch"
	// ReasonWrongApplication means the candidate applied for a different role.
	ReasonWrongApplication ScreeningReason = "wrong application"
	// ReasonErrorProcessing is the coerced reason recorded when the oracle's
	// verdict was invalid or unparseable. Never produced by a valid verdict.
	ReasonErrorProcessing ScreeningReason = "error processing"
)

// IsValidScreeningReason checks whether the given reason is one of the three
// enumerated screening reasons. ReasonErrorProcessing is excluded: it is a
// coercion artifact, not a legal oracle value.
func IsValidScreeningReason(r ScreeningReason) bool {
	switch r {
	case ReasonSkillMatch, ReasonSkillMismatch, ReasonWrongApplication:
		return true
	default:
		return false
	}
}

// TargetKey identifies which candidate cohort a campaign addresses.
type TargetKey string

const (
	// TargetWrongApplication addresses candidates rejected for applying to the
	// wrong position.
	TargetWrongApplication TargetKey = "wrong application"
	// TargetSkillMismatch addresses candidates rejected for missing skills.
	TargetSkillMismatch TargetKey = "skill mismatch"
	// TargetSkillMatch addresses shortlisted candidates.
	TargetSkillMatch TargetKey = "skill match"
)

// IsValidTargetKey checks whether the given target key is enumerated.
func IsValidTargetKey(t TargetKey) bool {
	switch t {
	case TargetWrongApplication, TargetSkillMismatch, TargetSkillMatch:
		return true
	default:
		return false
	}
}

// VerdictFilter returns the (status, reason) pair a target key selects:
// shortlisted+skill match for TargetSkillMatch, rejected+reason otherwise.
func (t TargetKey) VerdictFilter() (ScreeningStatus, ScreeningReason) {
	if t == TargetSkillMatch {
		return StatusShortlisted, ReasonSkillMatch
	}
	return StatusRejected, ScreeningReason(t)
}
