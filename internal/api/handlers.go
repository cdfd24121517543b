package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/TalentPipe/internal/models"
)

// handleTurn processes one conversational turn.
// POST /api/v1/turns
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Debug("api: turn received", "sessionID", req.SessionID, "messageLength", len(req.Message))
	result := s.orchestrator.ProcessTurn(r.Context(), req.SessionID, req.Message)
	writeResult(w, result)
}

// handleListVerdicts lists screening verdicts recorded for a session,
// optionally filtered by status and reason query parameters.
// GET /api/v1/sessions/{sessionID}/verdicts
func (s *Server) handleListVerdicts(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	status := models.ScreeningStatus(r.URL.Query().Get("status"))
	reason := models.ScreeningReason(r.URL.Query().Get("reason"))
	if status != "" && !models.IsValidScreeningStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	var (
		verdicts []models.ScreeningVerdict
		err      error
	)
	if status != "" && reason != "" {
		verdicts, err = s.store.ListScreeningVerdicts(sessionID, status, reason)
	} else {
		verdicts, err = s.listVerdictsUnfiltered(sessionID, status, reason)
	}
	if err != nil {
		slog.Error("api: failed to list verdicts", "error", err, "sessionID", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to list verdicts")
		return
	}
	if verdicts == nil {
		verdicts = []models.ScreeningVerdict{}
	}
	writeResult(w, verdicts)
}

// listVerdictsUnfiltered fans out over the enumerated status and reason
// values when the caller filters on only one dimension or neither.
func (s *Server) listVerdictsUnfiltered(sessionID string, status models.ScreeningStatus, reason models.ScreeningReason) ([]models.ScreeningVerdict, error) {
	statuses := []models.ScreeningStatus{models.StatusShortlisted, models.StatusRejected}
	if status != "" {
		statuses = []models.ScreeningStatus{status}
	}
	reasons := []models.ScreeningReason{
		models.ReasonSkillMatch, models.ReasonSkillMismatch,
		models.ReasonWrongApplication, models.ReasonErrorProcessing,
	}
	if reason != "" {
		reasons = []models.ScreeningReason{reason}
	}

	var verdicts []models.ScreeningVerdict
	for _, st := range statuses {
		for _, re := range reasons {
			batch, err := s.store.ListScreeningVerdicts(sessionID, st, re)
			if err != nil {
				return nil, err
			}
			verdicts = append(verdicts, batch...)
		}
	}
	return verdicts, nil
}

// handleListEmails lists stored email records for a session, optionally
// filtered by the email_type query parameter.
// GET /api/v1/sessions/{sessionID}/emails
func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	emailType := models.EmailType(r.URL.Query().Get("email_type"))

	records, err := s.store.ListEmailRecords(sessionID, emailType)
	if err != nil {
		slog.Error("api: failed to list emails", "error", err, "sessionID", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to list emails")
		return
	}
	if records == nil {
		records = []models.EmailRecord{}
	}
	writeResult(w, records)
}
