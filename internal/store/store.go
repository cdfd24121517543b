// Package store provides storage backends for TalentPipe.
//
// It defines the Store interface consumed by the flows and implements
// in-memory, SQLite, and PostgreSQL backends. Writes are append-only and
// independent; the core never requires multi-row transactional atomicity.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/TalentPipe/internal/models"
)

// Store defines the persistence operations the flows depend on.
type Store interface {
	// AddEmailRecord appends an email record and returns its ID.
	AddEmailRecord(rec models.EmailRecord) (int64, error)
	// ListEmailRecords returns records for a session in chronological order.
	// An empty emailType matches all types.
	ListEmailRecords(sessionID string, emailType models.EmailType) ([]models.EmailRecord, error)
	// ListRecentEmailRecords returns up to limit records, newest first.
	ListRecentEmailRecords(sessionID string, limit int) ([]models.EmailRecord, error)
	// FindEmailRecordBySender returns the first record whose sender contains
	// the given normalized email address, or nil when none matches.
	FindEmailRecordBySender(sessionID, senderEmail string) (*models.EmailRecord, error)

	// AddEmailAttachment appends an attachment row and returns its ID.
	AddEmailAttachment(att models.EmailAttachment) (int64, error)
	// ListEmailAttachments returns attachments for an email record in
	// insertion order.
	ListEmailAttachments(emailID int64) ([]models.EmailAttachment, error)

	// AddScreeningVerdict appends a verdict row. Verdicts are never updated.
	AddScreeningVerdict(v models.ScreeningVerdict) error
	// ListScreeningVerdicts returns verdicts matching the (status, reason)
	// pair for a session, oldest first.
	ListScreeningVerdicts(sessionID string, status models.ScreeningStatus, reason models.ScreeningReason) ([]models.ScreeningVerdict, error)

	// SaveSessionState stores or replaces session state for a flow.
	SaveSessionState(state models.SessionState) error
	// GetSessionState retrieves session state, or nil when none exists.
	GetSessionState(sessionID string, flowType string) (*models.SessionState, error)
	// DeleteSessionState removes session state for a flow.
	DeleteSessionState(sessionID string, flowType string) error

	// Close releases any backend resources.
	Close() error
}

// InMemoryStore is a mutex-guarded in-memory Store used for tests and for
// running without a database DSN.
type InMemoryStore struct {
	mu          sync.Mutex
	nextEmailID int64
	nextAttID   int64
	emails      []models.EmailRecord
	attachments []models.EmailAttachment
	verdicts    []models.ScreeningVerdict
	states      map[string]models.SessionState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextEmailID: 1,
		nextAttID:   1,
		states:      make(map[string]models.SessionState),
	}
}

func (s *InMemoryStore) AddEmailRecord(rec models.EmailRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextEmailID
	s.nextEmailID++
	s.emails = append(s.emails, rec)
	return rec.ID, nil
}

func (s *InMemoryStore) ListEmailRecords(sessionID string, emailType models.EmailType) ([]models.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EmailRecord
	for _, r := range s.emails {
		if r.SessionID != sessionID {
			continue
		}
		if emailType != "" && r.EmailType != emailType {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *InMemoryStore) ListRecentEmailRecords(sessionID string, limit int) ([]models.EmailRecord, error) {
	all, err := s.ListEmailRecords(sessionID, "")
	if err != nil {
		return nil, err
	}
	// Reverse chronological, capped at limit.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemoryStore) FindEmailRecordBySender(sessionID, senderEmail string) (*models.EmailRecord, error) {
	if senderEmail == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(senderEmail)
	for _, r := range s.emails {
		if r.SessionID == sessionID && strings.Contains(strings.ToLower(r.Sender), needle) {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) AddEmailAttachment(att models.EmailAttachment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att.ID = s.nextAttID
	s.nextAttID++
	s.attachments = append(s.attachments, att)
	return att.ID, nil
}

func (s *InMemoryStore) ListEmailAttachments(emailID int64) ([]models.EmailAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EmailAttachment
	for _, a := range s.attachments {
		if a.EmailID == emailID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *InMemoryStore) AddScreeningVerdict(v models.ScreeningVerdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	s.verdicts = append(s.verdicts, v)
	return nil
}

func (s *InMemoryStore) ListScreeningVerdicts(sessionID string, status models.ScreeningStatus, reason models.ScreeningReason) ([]models.ScreeningVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScreeningVerdict
	for _, v := range s.verdicts {
		if v.SessionID == sessionID && v.Status == status && v.Reason == reason {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SaveSessionState(state models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.SessionID+"|"+string(state.FlowType)] = state
	return nil
}

func (s *InMemoryStore) GetSessionState(sessionID string, flowType string) (*models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sessionID+"|"+flowType]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) DeleteSessionState(sessionID string, flowType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID+"|"+flowType)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
