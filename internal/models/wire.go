package models

import "time"

// OutcomeStatus classifies what happened to one pushed change during apply.
type OutcomeStatus string

const (
	// OutcomeOK: applied, or already applied (idempotent replay of a create).
	OutcomeOK OutcomeStatus = "ok"
	// OutcomeSkipped: unmet dependency (foreign key or missing row); the
	// record is retried on a later push once its parent exists.
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeFatal: unexpected apply error; fails the whole push.
	OutcomeFatal OutcomeStatus = "fatal"
	// OutcomeInvalid: structurally malformed event, dropped before apply.
	OutcomeInvalid OutcomeStatus = "invalid"
)

// ApplyOutcome is the per-record result of a push. Returning these as data
// (instead of log lines) lets callers and tests decide what to retry.
type ApplyOutcome struct {
	EventID  string        `json:"event_id"`
	Kind     EntityKind    `json:"entity_kind,omitempty"`
	EntityID string        `json:"entity_id,omitempty"`
	Status   OutcomeStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
}

type PushRequest struct {
	DeviceID string        `json:"device_id"`
	Changes  []ChangeEvent `json:"changes"`
}

type PushResponse struct {
	Success  bool           `json:"success"`
	Outcomes []ApplyOutcome `json:"outcomes"`
}

type PullResponse struct {
	Changes    []ChangeEvent `json:"changes"`
	ServerTime time.Time     `json:"server_time"`
}
