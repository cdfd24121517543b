// Package models defines state management structures for TalentPipe sessions.
package models

import "time"

// FlowType identifies which flow a piece of session state belongs to.
type FlowType string

const (
	// FlowTypeConversation is the conversational turn flow.
	FlowTypeConversation FlowType = "conversation"
)

// DataKey identifies a piece of auxiliary state data stored per session.
type DataKey string

const (
	// DataKeyConversationHistory stores the JSON-encoded turn history.
	DataKeyConversationHistory DataKey = "conversation_history"
	// DataKeyLastCampaignRun stores the JSON-encoded result of the most
	// recent campaign run for the session.
	DataKeyLastCampaignRun DataKey = "last_campaign_run"
)

// SessionState represents the persisted state of one session in a flow.
type SessionState struct {
	SessionID    string             `json:"session_id"`
	FlowType     FlowType           `json:"flow_type"`
	CurrentState string             `json:"current_state"`
	StateData    map[DataKey]string `json:"state_data,omitempty"` // Additional state-specific data
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
