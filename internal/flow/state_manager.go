// Package flow provides concrete implementations of session state management.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

// StateManager persists per-session conversation state between turns.
type StateManager interface {
	// GetHistory returns the stored conversation history for a session,
	// oldest turn first. A session with no stored state yields an empty slice.
	GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error)
	// AppendTurns appends turns to the session history, trimming the oldest
	// entries so the stored history never exceeds models.MaxHistoryTurns.
	AppendTurns(ctx context.Context, sessionID string, turns ...models.Turn) error
	// GetStateData retrieves a value associated with the session state.
	GetStateData(ctx context.Context, sessionID string, key models.DataKey) (string, error)
	// SetStateData stores a value associated with the session state.
	SetStateData(ctx context.Context, sessionID string, key models.DataKey, value string) error
	// ResetState removes all stored state for a session.
	ResetState(ctx context.Context, sessionID string) error
}

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetHistory retrieves the conversation history for a session.
func (sm *StoreBasedStateManager) GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error) {
	raw, err := sm.GetStateData(ctx, sessionID, models.DataKeyConversationHistory)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var history []models.Turn
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		slog.Error("StateManager GetHistory unmarshal error", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to decode conversation history: %w", err)
	}
	return history, nil
}

// AppendTurns appends turns to the session history and persists it, capped at
// models.MaxHistoryTurns most recent entries.
func (sm *StoreBasedStateManager) AppendTurns(ctx context.Context, sessionID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	history, err := sm.GetHistory(ctx, sessionID)
	if err != nil {
		slog.Warn("StateManager AppendTurns could not load history, starting fresh", "error", err, "sessionID", sessionID)
		history = nil
	}

	history = append(history, turns...)
	if len(history) > models.MaxHistoryTurns {
		history = history[len(history)-models.MaxHistoryTurns:]
	}

	encoded, err := json.Marshal(history)
	if err != nil {
		slog.Error("StateManager AppendTurns marshal error", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to encode conversation history: %w", err)
	}

	if err := sm.SetStateData(ctx, sessionID, models.DataKeyConversationHistory, string(encoded)); err != nil {
		return err
	}

	slog.Debug("StateManager AppendTurns succeeded", "sessionID", sessionID, "appended", len(turns), "historyLength", len(history))
	return nil
}

// GetStateData retrieves additional data associated with the session state.
func (sm *StoreBasedStateManager) GetStateData(ctx context.Context, sessionID string, key models.DataKey) (string, error) {
	slog.Debug("StateManager GetStateData", "sessionID", sessionID, "key", key)

	state, err := sm.store.GetSessionState(sessionID, string(models.FlowTypeConversation))
	if err != nil {
		slog.Error("StateManager GetStateData error", "error", err, "sessionID", sessionID, "key", key)
		return "", err
	}

	if state == nil || state.StateData == nil {
		slog.Debug("StateManager GetStateData not found", "sessionID", sessionID, "key", key)
		return "", nil
	}

	value, exists := state.StateData[key]
	if !exists {
		slog.Debug("StateManager GetStateData key not found", "sessionID", sessionID, "key", key)
		return "", nil
	}
	return value, nil
}

// SetStateData stores additional data associated with the session state.
func (sm *StoreBasedStateManager) SetStateData(ctx context.Context, sessionID string, key models.DataKey, value string) error {
	slog.Debug("StateManager SetStateData", "sessionID", sessionID, "key", key)

	state, err := sm.store.GetSessionState(sessionID, string(models.FlowTypeConversation))
	if err != nil {
		slog.Error("StateManager SetStateData get error", "error", err, "sessionID", sessionID, "key", key)
		return err
	}

	now := time.Now()
	if state == nil {
		state = &models.SessionState{
			SessionID:    sessionID,
			FlowType:     models.FlowTypeConversation,
			CurrentState: "",
			StateData:    map[models.DataKey]string{key: value},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	} else {
		if state.StateData == nil {
			state.StateData = make(map[models.DataKey]string)
		}
		state.StateData[key] = value
		state.UpdatedAt = now
	}

	if err := sm.store.SaveSessionState(*state); err != nil {
		slog.Error("StateManager SetStateData save error", "error", err, "sessionID", sessionID, "key", key)
		return err
	}

	slog.Debug("StateManager SetStateData succeeded", "sessionID", sessionID, "key", key)
	return nil
}

// ResetState removes all stored state for a session.
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, sessionID string) error {
	slog.Debug("StateManager ResetState", "sessionID", sessionID)

	if err := sm.store.DeleteSessionState(sessionID, string(models.FlowTypeConversation)); err != nil {
		slog.Error("StateManager ResetState error", "error", err, "sessionID", sessionID)
		return err
	}

	slog.Info("StateManager ResetState succeeded", "sessionID", sessionID)
	return nil
}
