package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/TalentPipe/internal/models"
)

// scanEmailRecords scans all email record rows from a query result.
func scanEmailRecords(rows *sql.Rows) ([]models.EmailRecord, error) {
	var records []models.EmailRecord
	for rows.Next() {
		var r models.EmailRecord
		var emailType string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Subject, &r.Sender, &r.Recipient, &r.Date, &r.Body, &emailType); err != nil {
			return nil, fmt.Errorf("failed to scan email record row: %w", err)
		}
		r.EmailType = models.EmailType(emailType)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate email record rows: %w", err)
	}
	return records, nil
}

// scanEmailRecordRow scans a single email record row.
func scanEmailRecordRow(row *sql.Row) (*models.EmailRecord, error) {
	var r models.EmailRecord
	var emailType string
	if err := row.Scan(&r.ID, &r.SessionID, &r.Subject, &r.Sender, &r.Recipient, &r.Date, &r.Body, &emailType); err != nil {
		return nil, err
	}
	r.EmailType = models.EmailType(emailType)
	return &r, nil
}

// scanScreeningVerdicts scans all verdict rows from a query result.
func scanScreeningVerdicts(rows *sql.Rows) ([]models.ScreeningVerdict, error) {
	var verdicts []models.ScreeningVerdict
	for rows.Next() {
		var v models.ScreeningVerdict
		var status, reason string
		if err := rows.Scan(&v.ID, &v.SessionID, &v.CandidateName, &v.CandidateEmail, &status, &reason, &v.ResumeText, &v.Body, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan screening verdict row: %w", err)
		}
		v.Status = models.ScreeningStatus(status)
		v.Reason = models.ScreeningReason(reason)
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate screening verdict rows: %w", err)
	}
	return verdicts, nil
}
