package domain

import "time"

// AuthEventKind names an identity or access decision worth exporting.
type AuthEventKind string

const (
	EventLogin         AuthEventKind = "auth.login"
	EventRegister      AuthEventKind = "auth.register"
	EventRefresh       AuthEventKind = "auth.refresh"
	EventTokenRejected AuthEventKind = "auth.token_rejected"
	EventAccessDenied  AuthEventKind = "access.denied"
)

// Outcome values for AuthEvent.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthEvent is one exported security event. UserID is zero when unknown.
type AuthEvent struct {
	Kind       AuthEventKind
	Outcome    string
	UserID     int64
	Username   string
	Reason     string
	RequestID  string
	Method     string
	Path       string
	OccurredAt time.Time
}
