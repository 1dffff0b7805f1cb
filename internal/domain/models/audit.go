package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kunay1/seal/pkg/constants"
)

// AuditEvent represents a single key release decision.
type AuditEvent struct {
	EventID     uuid.UUID                `json:"event_id"`
	EventType   constants.AuditEventType `json:"event_type"`
	RequestID   string                   `json:"request_id,omitempty"`
	User        string                   `json:"user,omitempty"`
	PolicyScope string                   `json:"policy_scope,omitempty"`
	PolicyIDs   []string                 `json:"policy_ids,omitempty"`
	Success     bool                     `json:"success"`
	ResultCode  string                   `json:"result_code,omitempty"`
	SDKVersion  string                   `json:"sdk_version,omitempty"`
	TraceID     string                   `json:"trace_id,omitempty"`
	Metadata    json.RawMessage          `json:"metadata,omitempty"`
	Timestamp   time.Time                `json:"timestamp"`
}

// NewAuditEvent creates a new audit event stamped with the given time.
func NewAuditEvent(eventType constants.AuditEventType, success bool, at time.Time) *AuditEvent {
	return &AuditEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		Success:   success,
		Timestamp: at.UTC(),
	}
}

// WithRequest sets the correlation fields.
func (a *AuditEvent) WithRequest(requestID, sdkVersion, traceID string) *AuditEvent {
	a.RequestID = requestID
	a.SDKVersion = sdkVersion
	a.TraceID = traceID
	return a
}

// WithAuthorization records who asked for which keys.
func (a *AuditEvent) WithAuthorization(user, scope ObjectID, ids []ObjectID) *AuditEvent {
	a.User = user.String()
	a.PolicyScope = scope.String()
	a.PolicyIDs = make([]string, len(ids))
	for i, id := range ids {
		a.PolicyIDs[i] = id.String()
	}
	return a
}

// WithResultCode sets the error code for denied requests.
func (a *AuditEvent) WithResultCode(code string) *AuditEvent {
	a.ResultCode = code
	return a
}

// WithMetadata sets JSON metadata for the event.
func (a *AuditEvent) WithMetadata(data interface{}) *AuditEvent {
	jsonData, err := json.Marshal(data)
	if err == nil {
		a.Metadata = jsonData
	}
	return a
}
