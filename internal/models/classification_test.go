package models

import "testing"

func TestParseIntent(t *testing.T) {
	cases := []struct {
		token string
		want  Intent
	}{
		{"hr_email_taskupdate", IntentTask},
		{"general", IntentGeneral},
		{"greeting", IntentUnknown},
		{"hr_email", IntentUnknown},
		{"", IntentUnknown},
	}
	for _, tc := range cases {
		if got := ParseIntent(tc.token); got != tc.want {
			t.Errorf("ParseIntent(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func TestParseTask(t *testing.T) {
	cases := []struct {
		token string
		want  Task
	}{
		{"email_fetcher&responder_agent", TaskFetchSummarize},
		{"job_applications_emails_summary_agent", TaskJobEmailSummary},
		{"job_application_screening_agent", TaskScreening},
		{"email_team_agent", TaskCampaign},
		{"other", TaskOther},
		{"screening", TaskUnknown},
		{"", TaskUnknown},
	}
	for _, tc := range cases {
		if got := ParseTask(tc.token); got != tc.want {
			t.Errorf("ParseTask(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func TestScreeningVocabulary(t *testing.T) {
	if !IsValidScreeningStatus(StatusShortlisted) || !IsValidScreeningStatus(StatusRejected) {
		t.Error("enumerated statuses must be valid")
	}
	if IsValidScreeningStatus("maybe") {
		t.Error("out-of-vocabulary status must be invalid")
	}

	for _, r := range []ScreeningReason{ReasonSkillMatch, ReasonSkillMismatch, ReasonWrongApplication} {
		if !IsValidScreeningReason(r) {
			t.Errorf("reason %q must be valid", r)
		}
	}
	// The coerced reason is reserved for failures and never accepted from the
	// oracle.
	if IsValidScreeningReason(ReasonErrorProcessing) {
		t.Error("error processing must not be an acceptable oracle reason")
	}
}

func TestTargetKeyVerdictFilter(t *testing.T) {
	cases := []struct {
		target     TargetKey
		wantStatus ScreeningStatus
		wantReason ScreeningReason
	}{
		{TargetSkillMatch, StatusShortlisted, ReasonSkillMatch},
		{TargetSkillMismatch, StatusRejected, ReasonSkillMismatch},
		{TargetWrongApplication, StatusRejected, ReasonWrongApplication},
	}
	for _, tc := range cases {
		status, reason := tc.target.VerdictFilter()
		if status != tc.wantStatus || reason != tc.wantReason {
			t.Errorf("VerdictFilter(%q) = (%q, %q), want (%q, %q)",
				tc.target, status, reason, tc.wantStatus, tc.wantReason)
		}
	}
}

func TestTurnRequestValidate(t *testing.T) {
	valid := TurnRequest{SessionID: "s1", Message: "hello"}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}

	cases := []struct {
		name    string
		req     TurnRequest
		wantErr error
	}{
		{"empty session", TurnRequest{Message: "hello"}, ErrEmptySessionID},
		{"empty message", TurnRequest{SessionID: "s1"}, ErrEmptyMessage},
		{"session too long", TurnRequest{SessionID: longString(MaxSessionIDLength + 1), Message: "hi"}, ErrSessionIDTooLong},
		{"message too long", TurnRequest{SessionID: "s1", Message: longString(MaxMessageLength + 1)}, ErrMessageTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); err != tc.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func longString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
