// Package store provides storage backends for TalentPipe.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddEmailRecord(rec models.EmailRecord) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO email_records (session_id, subject, sender, recipient, date, body, email_type) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.SessionID, rec.Subject, rec.Sender, rec.Recipient, rec.Date, rec.Body, string(rec.EmailType)).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore AddEmailRecord failed", "error", err, "sessionID", rec.SessionID)
		return 0, fmt.Errorf("failed to insert email record: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListEmailRecords(sessionID string, emailType models.EmailType) ([]models.EmailRecord, error) {
	query := `SELECT id, session_id, subject, sender, recipient, date, body, email_type FROM email_records WHERE session_id = $1`
	args := []interface{}{sessionID}
	if emailType != "" {
		query += ` AND email_type = $2`
		args = append(args, string(emailType))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListEmailRecords query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query email records: %w", err)
	}
	defer rows.Close()
	return scanEmailRecords(rows)
}

func (s *PostgresStore) ListRecentEmailRecords(sessionID string, limit int) ([]models.EmailRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, subject, sender, recipient, date, body, email_type FROM email_records WHERE session_id = $1 ORDER BY date DESC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		slog.Error("PostgresStore ListRecentEmailRecords query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query recent email records: %w", err)
	}
	defer rows.Close()
	return scanEmailRecords(rows)
}

func (s *PostgresStore) FindEmailRecordBySender(sessionID, senderEmail string) (*models.EmailRecord, error) {
	if senderEmail == "" {
		return nil, nil
	}
	row := s.db.QueryRow(
		`SELECT id, session_id, subject, sender, recipient, date, body, email_type FROM email_records WHERE session_id = $1 AND sender ILIKE $2 ORDER BY date ASC LIMIT 1`,
		sessionID, "%"+senderEmail+"%")
	rec, err := scanEmailRecordRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore FindEmailRecordBySender failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to find email record by sender: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) AddEmailAttachment(att models.EmailAttachment) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO email_attachments (email_id, session_id, filename, extracted_text) VALUES ($1, $2, $3, $4) RETURNING id`,
		att.EmailID, att.SessionID, att.Filename, att.ExtractedText).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore AddEmailAttachment failed", "error", err, "emailID", att.EmailID)
		return 0, fmt.Errorf("failed to insert email attachment: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListEmailAttachments(emailID int64) ([]models.EmailAttachment, error) {
	rows, err := s.db.Query(
		`SELECT id, email_id, session_id, filename, extracted_text FROM email_attachments WHERE email_id = $1 ORDER BY id ASC`,
		emailID)
	if err != nil {
		slog.Error("PostgresStore ListEmailAttachments query failed", "error", err, "emailID", emailID)
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

func (s *PostgresStore) AddScreeningVerdict(v models.ScreeningVerdict) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO screening_verdicts (id, session_id, candidate_name, candidate_email, screening_status, reason, resume_text, body, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.SessionID, v.CandidateName, v.CandidateEmail, string(v.Status), string(v.Reason), v.ResumeText, v.Body, v.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddScreeningVerdict failed", "error", err, "sessionID", v.SessionID, "candidate", v.CandidateEmail)
		return fmt.Errorf("failed to insert screening verdict: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListScreeningVerdicts(sessionID string, status models.ScreeningStatus, reason models.ScreeningReason) ([]models.ScreeningVerdict, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, candidate_name, candidate_email, screening_status, reason, resume_text, body, created_at FROM screening_verdicts WHERE session_id = $1 AND screening_status = $2 AND reason = $3 ORDER BY created_at ASC`,
		sessionID, string(status), string(reason))
	if err != nil {
		slog.Error("PostgresStore ListScreeningVerdicts query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query screening verdicts: %w", err)
	}
	defer rows.Close()
	return scanScreeningVerdicts(rows)
}

// SaveSessionState stores or updates session state for a flow.
func (s *PostgresStore) SaveSessionState(state models.SessionState) error {
	var stateDataJSON string
	if len(state.StateData) > 0 {
		jsonBytes, err := json.Marshal(state.StateData)
		if err != nil {
			slog.Error("PostgresStore SaveSessionState JSON marshal failed", "error", err, "sessionID", state.SessionID)
			return err
		}
		stateDataJSON = string(jsonBytes)
	}

	_, err := s.db.Exec(
		`INSERT INTO session_states (session_id, flow_type, current_state, state_data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id, flow_type) DO UPDATE SET current_state = $3, state_data = $4, updated_at = $6`,
		state.SessionID, string(state.FlowType), state.CurrentState, stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSessionState failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	return nil
}

// GetSessionState retrieves session state for a flow.
func (s *PostgresStore) GetSessionState(sessionID, flowType string) (*models.SessionState, error) {
	var state models.SessionState
	var flowTypeStr string
	var stateDataJSON sql.NullString

	err := s.db.QueryRow(
		`SELECT session_id, flow_type, current_state, state_data, created_at, updated_at FROM session_states WHERE session_id = $1 AND flow_type = $2`,
		sessionID, flowType).Scan(
		&state.SessionID, &flowTypeStr, &state.CurrentState, &stateDataJSON, &state.CreatedAt, &state.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSessionState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}
	state.FlowType = models.FlowType(flowTypeStr)

	if stateDataJSON.Valid && stateDataJSON.String != "" {
		state.StateData = make(map[models.DataKey]string)
		if err := json.Unmarshal([]byte(stateDataJSON.String), &state.StateData); err != nil {
			slog.Error("PostgresStore GetSessionState JSON unmarshal failed", "error", err, "sessionID", sessionID)
			state.StateData = make(map[models.DataKey]string)
		}
	}
	return &state, nil
}

// DeleteSessionState removes session state for a flow.
func (s *PostgresStore) DeleteSessionState(sessionID, flowType string) error {
	_, err := s.db.Exec(`DELETE FROM session_states WHERE session_id = $1 AND flow_type = $2`, sessionID, flowType)
	if err != nil {
		slog.Error("PostgresStore DeleteSessionState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
