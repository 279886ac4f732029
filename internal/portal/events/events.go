// Package events publishes portal state changes to Kafka and consumes them
// in the notifier.
package events

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	CodeRequestSubmitted   EventType = "code_request_submitted"
	CodeRequestApproved    EventType = "code_request_approved"
	CodeRequestRejected    EventType = "code_request_rejected"
	ClientCreated          EventType = "client_created"
	ClientUpdated          EventType = "client_updated"
	ClientDeactivated      EventType = "client_deactivated"
	AccessCodeRegenerated  EventType = "access_code_regenerated"
	ClientLoggedIn         EventType = "client_logged_in"
	JobPostingSubmitted    EventType = "job_posting_submitted"
	JobPostingUpdated      EventType = "job_posting_updated"
	JobPostingDeleted      EventType = "job_posting_deleted"
	JobPostingStatusChange EventType = "job_posting_status_changed"
	JobApplicationReceived EventType = "job_application_received"
)

// Event is the envelope written to the topic. Key is the id of the entity
// the event is about and doubles as the Kafka message key.
type Event struct {
	Type       EventType       `json:"type"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
