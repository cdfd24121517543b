// Package store provides storage backends for TalentPipe.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddEmailRecord(rec models.EmailRecord) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO email_records (session_id, subject, sender, recipient, date, body, email_type) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Subject, rec.Sender, rec.Recipient, rec.Date, rec.Body, string(rec.EmailType))
	if err != nil {
		slog.Error("SQLiteStore AddEmailRecord failed", "error", err, "sessionID", rec.SessionID)
		return 0, fmt.Errorf("failed to insert email record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read email record id: %w", err)
	}
	slog.Debug("SQLiteStore AddEmailRecord succeeded", "id", id, "sessionID", rec.SessionID, "emailType", rec.EmailType)
	return id, nil
}

func (s *SQLiteStore) ListEmailRecords(sessionID string, emailType models.EmailType) ([]models.EmailRecord, error) {
	query := `SELECT id, session_id, subject, sender, recipient, date, body, email_type FROM email_records WHERE session_id = ?`
	args := []interface{}{sessionID}
	if emailType != "" {
		query += ` AND email_type = ?`
		args = append(args, string(emailType))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListEmailRecords query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query email records: %w", err)
	}
	defer rows.Close()
	return scanEmailRecords(rows)
}

func (s *SQLiteStore) ListRecentEmailRecords(sessionID string, limit int) ([]models.EmailRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, subject, sender, recipient, date, body, email_type FROM email_records WHERE session_id = ? ORDER BY date DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		slog.Error("SQLiteStore ListRecentEmailRecords query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query recent email records: %w", err)
	}
	defer rows.Close()
	return scanEmailRecords(rows)
}

func (s *SQLiteStore) FindEmailRecordBySender(sessionID, senderEmail string) (*models.EmailRecord, error) {
	if senderEmail == "" {
		return nil, nil
	}
	row := s.db.QueryRow(
		`SELECT id, session_id, subject, sender, recipient, date, body, email_type FROM email_records WHERE session_id = ? AND sender LIKE ? ORDER BY date ASC LIMIT 1`,
		sessionID, "%"+senderEmail+"%")
	rec, err := scanEmailRecordRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore FindEmailRecordBySender failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to find email record by sender: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) AddEmailAttachment(att models.EmailAttachment) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO email_attachments (email_id, session_id, filename, extracted_text) VALUES (?, ?, ?, ?)`,
		att.EmailID, att.SessionID, att.Filename, att.ExtractedText)
	if err != nil {
		slog.Error("SQLiteStore AddEmailAttachment failed", "error", err, "emailID", att.EmailID)
		return 0, fmt.Errorf("failed to insert email attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read attachment id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListEmailAttachments(emailID int64) ([]models.EmailAttachment, error) {
	rows, err := s.db.Query(
		`SELECT id, email_id, session_id, filename, extracted_text FROM email_attachments WHERE email_id = ? ORDER BY id ASC`,
		emailID)
	if err != nil {
		slog.Error("SQLiteStore ListEmailAttachments query failed", "error", err, "emailID", emailID)
		return nil, fmt.Errorf("failed to query email attachments: %w", err)
	}
	defer rows.Close()

	var atts []models.EmailAttachment
	for rows.Next() {
		var a models.EmailAttachment
		if err := rows.Scan(&a.ID, &a.EmailID, &a.SessionID, &a.Filename, &a.ExtractedText); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}

func (s *SQLiteStore) AddScreeningVerdict(v models.ScreeningVerdict) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO screening_verdicts (id, session_id, candidate_name, candidate_email, screening_status, reason, resume_text, body, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.SessionID, v.CandidateName, v.CandidateEmail, string(v.Status), string(v.Reason), v.ResumeText, v.Body, v.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddScreeningVerdict failed", "error", err, "sessionID", v.SessionID, "candidate", v.CandidateEmail)
		return fmt.Errorf("failed to insert screening verdict: %w", err)
	}
	slog.Debug("SQLiteStore AddScreeningVerdict succeeded", "sessionID", v.SessionID, "status", v.Status, "reason", v.Reason)
	return nil
}

func (s *SQLiteStore) ListScreeningVerdicts(sessionID string, status models.ScreeningStatus, reason models.ScreeningReason) ([]models.ScreeningVerdict, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, candidate_name, candidate_email, screening_status, reason, resume_text, body, created_at FROM screening_verdicts WHERE session_id = ? AND screening_status = ? AND reason = ? ORDER BY created_at ASC`,
		sessionID, string(status), string(reason))
	if err != nil {
		slog.Error("SQLiteStore ListScreeningVerdicts query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query screening verdicts: %w", err)
	}
	defer rows.Close()
	return scanScreeningVerdicts(rows)
}

// SaveSessionState stores or updates session state for a flow.
func (s *SQLiteStore) SaveSessionState(state models.SessionState) error {
	var stateDataJSON string
	if len(state.StateData) > 0 {
		jsonBytes, err := json.Marshal(state.StateData)
		if err != nil {
			slog.Error("SQLiteStore SaveSessionState JSON marshal failed", "error", err, "sessionID", state.SessionID)
			return err
		}
		stateDataJSON = string(jsonBytes)
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO session_states (session_id, flow_type, current_state, state_data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		state.SessionID, string(state.FlowType), state.CurrentState, stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSessionState failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("SQLiteStore SaveSessionState succeeded", "sessionID", state.SessionID, "flowType", state.FlowType)
	return nil
}

// GetSessionState retrieves session state for a flow.
func (s *SQLiteStore) GetSessionState(sessionID, flowType string) (*models.SessionState, error) {
	var state models.SessionState
	var flowTypeStr, stateDataJSON string

	err := s.db.QueryRow(
		`SELECT session_id, flow_type, current_state, state_data, created_at, updated_at FROM session_states WHERE session_id = ? AND flow_type = ?`,
		sessionID, flowType).Scan(
		&state.SessionID, &flowTypeStr, &state.CurrentState, &stateDataJSON, &state.CreatedAt, &state.UpdatedAt)

	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSessionState not found", "sessionID", sessionID, "flowType", flowType)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSessionState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}
	state.FlowType = models.FlowType(flowTypeStr)

	if stateDataJSON != "" {
		state.StateData = make(map[models.DataKey]string)
		if err := json.Unmarshal([]byte(stateDataJSON), &state.StateData); err != nil {
			slog.Error("SQLiteStore GetSessionState JSON unmarshal failed", "error", err, "sessionID", sessionID)
			// Continue with empty map rather than failing
			state.StateData = make(map[models.DataKey]string)
		}
	}
	return &state, nil
}

// DeleteSessionState removes session state for a flow.
func (s *SQLiteStore) DeleteSessionState(sessionID, flowType string) error {
	_, err := s.db.Exec(`DELETE FROM session_states WHERE session_id = ? AND flow_type = ?`, sessionID, flowType)
	if err != nil {
		slog.Error("SQLiteStore DeleteSessionState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
