package domain

import "time"

// AccountLockedEvent is emitted when an authentication record is disabled
// after exhausting one of the failure budgets.
type AccountLockedEvent struct {
	EventID  string
	UserID   string
	Surface  IncidentType
	LockedAt time.Time
	Metadata map[string]any
}

// IncidentOpenedEvent is emitted when a new recovery incident is created.
// Deduplicated triggers do not emit a second event.
type IncidentOpenedEvent struct {
	EventID    string
	IncidentID string
	UserID     string
	Type       IncidentType
	DedupeKey  string
	OpenedAt   time.Time
}

// PasswordResetEvent is emitted after a recovery flow commits a new password
// and clears all failure budgets.
type PasswordResetEvent struct {
	EventID  string
	UserID   string
	ResetAt  time.Time
	Metadata map[string]any
}

// CodeIssuedEvent is emitted when a one-time code is dispatched. The code
// value itself is never part of the event payload.
type CodeIssuedEvent struct {
	EventID    string
	UserID     string
	Purpose    string
	DailyCount int
	IssuedAt   time.Time
}
