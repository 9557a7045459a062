package model

import (
	"bytes"
	"encoding/json"
)

// EmailPayload is the message body the backend queued for delivery.
type EmailPayload struct {
	// To is the destination email address.
	To string `json:"to" validate:"required"`

	// Subject is the email subject line, if any.
	Subject string `json:"subject,omitempty"`

	// Message is the email body, if any.
	Message string `json:"message,omitempty"`
}

// RawNotification is a notification record as returned by the bulk
// fetch endpoint.
type RawNotification struct {
	// ID is the backend's opaque identifier. It is stable across updates
	// to the same notification.
	ID string `json:"_id" validate:"required"`

	// Payload holds the email being delivered.
	Payload *EmailPayload `json:"payload" validate:"required"`

	// Status is the free-form delivery status ("pending", "delivered", ...).
	// Nil means unknown.
	Status *string `json:"status,omitempty"`

	// Timestamp is an ISO-8601 timestamp string. Nil means absent.
	Timestamp *string `json:"timestamp,omitempty"`
}

// UnmarshalJSON decodes a record. A status or timestamp that is not a
// JSON string is treated as absent so one odd field does not reject the
// record; the other fields decode strictly.
func (r *RawNotification) UnmarshalJSON(data []byte) error {
	type plain RawNotification
	aux := struct {
		*plain
		Status    json.RawMessage `json:"status,omitempty"`
		Timestamp json.RawMessage `json:"timestamp,omitempty"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Status = optionalString(aux.Status)
	r.Timestamp = optionalString(aux.Timestamp)
	return nil
}

// optionalString returns the string held by raw, or nil when raw is
// missing, null or any other JSON type.
func optionalString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// Destination returns the recipient address, or "" if the payload is missing.
func (r RawNotification) Destination() string {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.To
}

// DisplayRecord is the render-ready form of a notification.
type DisplayRecord struct {
	ID           string `json:"id"`
	Recipient    string `json:"recipient"`
	Status       string `json:"status"`
	RelativeTime string `json:"relative_time"`
}

// EventKind tags a push event.
type EventKind string

const (
	EventRecordAdded   EventKind = "RECORD_ADDED"
	EventRecordUpdated EventKind = "RECORD_UPDATED"
	EventRecordDeleted EventKind = "RECORD_DELETED"
)

// Qualifying reports whether an event of this kind should trigger a refresh.
func (k EventKind) Qualifying() bool {
	switch k {
	case EventRecordAdded, EventRecordUpdated:
		return true
	default:
		return false
	}
}

// PushEvent is a decoded message from the push channel. Body is opaque;
// the arrival of a qualifying event is the signal, not its contents.
type PushEvent struct {
	Kind EventKind       `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
}
