package event

import (
	"encoding/json"
	"errors"
)

// Kind tags carried on the wire. The set is open at the protocol level (a
// producer may introduce a new tag without a broker deploy); these cover the
// platform's known producers.
const (
	KindNotification   = "Notification"
	KindNewRequest     = "NewRequest"
	KindRequestAccept  = "RequestAccept"
	KindRequestDecline = "RequestDecline"
	KindNewAudit       = "NewAudit"
	KindAuditUpdate    = "AuditUpdate"
	KindChatMessage    = "ChatMessage"
	KindIssueUpdated   = "IssueUpdated"
	KindVersionUpdate  = "VersionUpdate"
)

// TargetAll addresses an event to every connected user.
const TargetAll = "all"

var (
	ErrMissingTarget = errors.New("event has no target user")
	ErrMissingKind   = errors.New("event has no kind")
)

// Event is one user-addressed message from a producer. Payload is opaque to
// the broker; it is forwarded verbatim inside the push frame.
type Event struct {
	UserID  string          `json:"user_id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ForAll reports whether the event fans out to every user instead of one.
// VersionUpdate is inherently global; any kind may opt in with the "all" target.
func (e Event) ForAll() bool {
	return e.UserID == TargetAll || e.Kind == KindVersionUpdate
}

// Validate checks the fields the broker itself needs. Payload contents are
// the producer's business.
func (e Event) Validate() error {
	if e.UserID == "" && !e.ForAll() {
		return ErrMissingTarget
	}
	if e.Kind == "" {
		return ErrMissingKind
	}
	return nil
}

// Frame is the outbound push frame, one per delivered event.
type Frame struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeFrame serializes the event into its push frame form.
func (e Event) EncodeFrame() ([]byte, error) {
	data, err := json.Marshal(Frame{Kind: e.Kind, Payload: e.Payload})
	if err != nil {
		return nil, err
	}
	return data, nil
}
