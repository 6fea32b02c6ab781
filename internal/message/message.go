// Package message defines the coordination broker's wire types: the
// closed message-type enumeration, the envelope, the payload, the
// query filter, the notification event, the presence record, and
// stats. It owns serialization to and from the canonical wire shape.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type is the closed set of coordination message types. Unknown tags
// are rejected at the boundary by Parse.
type Type string

const (
	TypeReadyForReview          Type = "READY_FOR_REVIEW"
	TypeReviewComplete          Type = "REVIEW_COMPLETE"
	TypeReviewFailed            Type = "REVIEW_FAILED"
	TypeContractChangeProposed  Type = "CONTRACT_CHANGE_PROPOSED"
	TypeContractReviewNeeded    Type = "CONTRACT_REVIEW_NEEDED"
	TypeContractFeedback        Type = "CONTRACT_FEEDBACK"
	TypeContractApproved        Type = "CONTRACT_APPROVED"
	TypeContractRejected        Type = "CONTRACT_REJECTED"
	TypeMetaChangeRequest       Type = "META_CHANGE_REQUEST"
	TypeMetaChangeComplete      Type = "META_CHANGE_COMPLETE"
	TypeInterfaceUpdate         Type = "INTERFACE_UPDATE"
	TypeBlockingIssue           Type = "BLOCKING_ISSUE"
	TypeGeneral                 Type = "GENERAL"
	TypeStatusUpdate            Type = "STATUS_UPDATE"
	TypeHeartbeat               Type = "HEARTBEAT"
	TypeNotification            Type = "NOTIFICATION"
)

// ValidTypes lists every recognized message type, in declaration order.
var ValidTypes = []Type{
	TypeReadyForReview, TypeReviewComplete, TypeReviewFailed,
	TypeContractChangeProposed, TypeContractReviewNeeded, TypeContractFeedback,
	TypeContractApproved, TypeContractRejected,
	TypeMetaChangeRequest, TypeMetaChangeComplete,
	TypeInterfaceUpdate, TypeBlockingIssue, TypeGeneral,
	TypeStatusUpdate, TypeHeartbeat, TypeNotification,
}

// ErrUnknownType is returned by Parse for any tag outside the closed set.
var ErrUnknownType = errors.New("unknown message type")

// Parse validates a wire string against the closed type set.
func Parse(s string) (Type, error) {
	t := Type(s)
	for _, v := range ValidTypes {
		if v == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownType, s)
}

// ValidTypeStrings renders ValidTypes as plain strings, for error payloads.
func ValidTypeStrings() []string {
	out := make([]string, len(ValidTypes))
	for i, t := range ValidTypes {
		out[i] = string(t)
	}
	return out
}

// TimeLayout is the second-resolution UTC wire timestamp format.
const TimeLayout = "2006-01-02T15:04:05Z"

// FormatTime renders t as the canonical wire timestamp.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeLayout)
}

// ParseTime accepts both the trailing-Z form and a numeric UTC offset.
func ParseTime(s string) (time.Time, error) {
	if strings.HasSuffix(s, "Z") {
		return time.Parse(TimeLayout, s)
	}
	return time.Parse(time.RFC3339, s)
}

// Payload is the subject/description pair carried by every envelope.
type Payload struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// Envelope is the full persisted message record.
type Envelope struct {
	ID           string  `json:"id"`
	Type         Type    `json:"type"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	Timestamp    time.Time `json:"-"`
	RequiresAck  bool    `json:"requires_ack"`
	Acknowledged bool    `json:"acknowledged"`
	Payload      Payload `json:"payload"`

	AckBy        string     `json:"-"`
	AckTimestamp *time.Time `json:"-"`
	AckComment   string     `json:"-"`
}

// wireEnvelope is the JSON shape on the wire: optional ack fields are
// omitted entirely, never emitted as null, when unset.
type wireEnvelope struct {
	ID           string  `json:"id"`
	Type         Type    `json:"type"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	Timestamp    string  `json:"timestamp"`
	RequiresAck  bool    `json:"requires_ack"`
	Acknowledged bool    `json:"acknowledged"`
	Payload      Payload `json:"payload"`
	AckBy        string  `json:"ack_by,omitempty"`
	AckTimestamp string  `json:"ack_timestamp,omitempty"`
	AckComment   string  `json:"ack_comment,omitempty"`
}

// MarshalJSON renders the envelope in its canonical wire shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		ID:           e.ID,
		Type:         e.Type,
		From:         e.From,
		To:           e.To,
		Timestamp:    FormatTime(e.Timestamp),
		RequiresAck:  e.RequiresAck,
		Acknowledged: e.Acknowledged,
		Payload:      e.Payload,
		AckBy:        e.AckBy,
		AckComment:   e.AckComment,
	}
	if e.AckTimestamp != nil {
		w.AckTimestamp = FormatTime(*e.AckTimestamp)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the canonical wire shape back into an Envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := ParseTime(w.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing envelope timestamp: %w", err)
	}
	*e = Envelope{
		ID:           w.ID,
		Type:         w.Type,
		From:         w.From,
		To:           w.To,
		Timestamp:    ts,
		RequiresAck:  w.RequiresAck,
		Acknowledged: w.Acknowledged,
		Payload:      w.Payload,
		AckBy:        w.AckBy,
		AckComment:   w.AckComment,
	}
	if w.AckTimestamp != "" {
		at, err := ParseTime(w.AckTimestamp)
		if err != nil {
			return fmt.Errorf("parsing ack_timestamp: %w", err)
		}
		e.AckTimestamp = &at
	}
	return nil
}

// Query filters a set of envelopes. Limit must be clamped to [1,1000]
// by the caller; zero means "use the broker's default."
type Query struct {
	ToInstance   string
	FromInstance string
	MsgType      Type
	PendingOnly  bool
	Since        *time.Time
	Limit        int
}

// NotificationEvent is the compact projection of a published message.
type NotificationEvent struct {
	Event       string `json:"event"`
	MessageID   string `json:"message_id"`
	Type        Type   `json:"type"`
	From        string `json:"from"`
	To          string `json:"to"`
	RequiresAck bool   `json:"requires_ack"`
	Timestamp   time.Time `json:"-"`
}

type wireNotification struct {
	Event       string `json:"event"`
	MessageID   string `json:"message_id"`
	Type        Type   `json:"type"`
	From        string `json:"from"`
	To          string `json:"to"`
	RequiresAck bool   `json:"requires_ack"`
	Timestamp   string `json:"timestamp"`
}

// MarshalJSON renders the notification event in its wire shape.
func (n NotificationEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireNotification{
		Event:       n.Event,
		MessageID:   n.MessageID,
		Type:        n.Type,
		From:        n.From,
		To:          n.To,
		RequiresAck: n.RequiresAck,
		Timestamp:   FormatTime(n.Timestamp),
	})
}

// UnmarshalJSON parses the notification event wire shape.
func (n *NotificationEvent) UnmarshalJSON(data []byte) error {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := ParseTime(w.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing notification timestamp: %w", err)
	}
	*n = NotificationEvent{
		Event: w.Event, MessageID: w.MessageID, Type: w.Type,
		From: w.From, To: w.To, RequiresAck: w.RequiresAck, Timestamp: ts,
	}
	return nil
}

// FromEnvelope projects a notification event from a published envelope.
func FromEnvelope(e Envelope) NotificationEvent {
	return NotificationEvent{
		Event:       "message_published",
		MessageID:   e.ID,
		Type:        e.Type,
		From:        e.From,
		To:          e.To,
		RequiresAck: e.RequiresAck,
		Timestamp:   e.Timestamp,
	}
}

// Presence is an instance's liveness record. Active combines the
// stored flag with freshness of the heartbeat: an instance is only
// reported active if it is both flagged active and not stale.
type Presence struct {
	InstanceID           string
	StoredActive         bool
	LastHeartbeat        *time.Time
	SessionID            string
	Active               bool
	Stale                bool
	SecondsSinceHeartbeat float64
}

// IsStale reports whether lastHeartbeat is at or past the threshold,
// measured against now. Staleness is inclusive at exactly the
// threshold, per the boundary-behavior requirement: a heartbeat exactly
// threshold-minutes old is already stale.
func IsStale(lastHeartbeat *time.Time, now time.Time, threshold time.Duration) bool {
	if lastHeartbeat == nil {
		return true
	}
	return now.Sub(*lastHeartbeat) >= threshold
}

// Stats summarizes the broker's current state.
type Stats struct {
	TotalMessages    int            `json:"total_messages"`
	PendingMessages  int            `json:"pending_messages"`
	MessagesByType   map[string]int `json:"messages_by_type"`
	ActiveInstances  int            `json:"active_instances"`
	InstanceNames    []string       `json:"instance_names"`
}
