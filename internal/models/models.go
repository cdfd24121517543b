// Package models defines the core data structures for TalentPipe.
//
// It includes types for conversation turns, stored email records, screening
// verdicts, and campaign results, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for an inbound turn message
	MaxMessageLength = 8192
	// MaxSessionIDLength defines the maximum allowed length for a session identifier
	MaxSessionIDLength = 100
	// RecentTurnWindow defines how many trailing turns the memory extractor folds
	RecentTurnWindow = 10
	// MaxHistoryTurns defines the cap on persisted conversation history per session
	MaxHistoryTurns = 50
)

// Error variables for better error handling and testability
var (
	ErrEmptySessionID   = errors.New("session_id cannot be empty")
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrSessionIDTooLong = errors.New("session_id exceeds maximum length")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrInvalidStatus    = errors.New("invalid screening status")
	ErrInvalidReason    = errors.New("invalid screening reason")
	ErrInvalidTarget    = errors.New("invalid campaign target key")
)

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	// RoleUser marks a turn authored by the user.
	RoleUser TurnRole = "user"
	// RoleAssistant marks a turn authored by the assistant.
	RoleAssistant TurnRole = "assistant"
	// RoleSystem marks a system-injected turn.
	RoleSystem TurnRole = "system"
)

// Turn represents a single message in a session's conversation history.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnRequest is the inbound turn interface consumed from the HTTP layer.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Validate checks the caller-side contract for an inbound turn.
func (r *TurnRequest) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	if len(r.SessionID) > MaxSessionIDLength {
		return ErrSessionIDTooLong
	}
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// TurnResult is the outbound shape for one completed turn.
type TurnResult struct {
	SessionID          string `json:"session_id"`
	AIResponse         string `json:"ai_response"`
	Classification     string `json:"classification"`
	TaskClassification string `json:"task_classification,omitempty"`
	CurrentAgent       string `json:"current_agent"`
	HasMemory          bool   `json:"has_memory"`
}

// EmailType classifies a stored email record.
type EmailType string

const (
	// EmailTypeJobApplication marks an email recognized as a job application.
	EmailTypeJobApplication EmailType = "job_application"
	// EmailTypeSecurity marks a security-related email.
	EmailTypeSecurity EmailType = "security"
	// EmailTypeOrganization marks an internal organization email.
	EmailTypeOrganization EmailType = "organization"
	// EmailTypeOther marks any email outside the known categories.
	EmailTypeOther EmailType = "other"
)

// EmailRecord represents one stored inbound email. Records are written by the
// external mail-fetching collaborator and are read-only within the core.
type EmailRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Subject   string    `json:"subject"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Date      time.Time `json:"date"`
	Body      string    `json:"body"`
	EmailType EmailType `json:"email_type"`
}

// EmailAttachment represents an attachment on a stored email. ExtractedText is
// populated by the external resume-text extraction collaborator; an empty
// value means extraction yielded nothing for this attachment.
type EmailAttachment struct {
	ID            int64  `json:"id"`
	EmailID       int64  `json:"email_id"`
	SessionID     string `json:"session_id"`
	Filename      string `json:"filename"`
	ExtractedText string `json:"extracted_text"`
}

// ScreeningVerdict is the persisted outcome of screening one application.
// Verdicts are append-only; re-screening creates new rows distinguishable by
// CreatedAt.
type ScreeningVerdict struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	CandidateName  string          `json:"candidate_name"`
	CandidateEmail string          `json:"candidate_email"`
	Status         ScreeningStatus `json:"screening_status"`
	Reason         ScreeningReason `json:"reason"`
	ResumeText     string          `json:"resume_text"`
	Body           string          `json:"body"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Candidate is one member of a campaign cohort: a screening verdict joined to
// its original application record by normalized sender email.
type Candidate struct {
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	OriginalSubject    string          `json:"original_subject"`
	OriginalBody       string          `json:"original_body"`
	ResumeText         string          `json:"resume_text"`
	Status             ScreeningStatus `json:"screening_status"`
	Reason             ScreeningReason `json:"reason"`
	ApplicationDate    time.Time       `json:"application_date"`
	ScreeningTimestamp time.Time       `json:"screening_timestamp"`
}
