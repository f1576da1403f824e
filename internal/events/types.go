package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit event names emitted by the grant engine and the revocation workflow.
const (
	EventAuthorityAssigned   = "AUTHORITY_ASSIGNED"
	EventGrantCreated        = "GRANT_CREATED"
	EventGrantRevoked        = "GRANT_REVOKED"
	EventRevocationRequested = "REVOCATION_REQUESTED"
	EventRevocationApproved  = "REVOCATION_APPROVED"
	EventRevocationDenied    = "REVOCATION_DENIED"
	EventRevocationCancelled = "REVOCATION_CANCELLED"
)

// routingKeys maps audit event names onto topic routing keys under the
// document.events exchange.
var routingKeys = map[string]string{
	EventAuthorityAssigned:   "authority.assigned",
	EventGrantCreated:        "grant.created",
	EventGrantRevoked:        "grant.revoked",
	EventRevocationRequested: "revocation.requested",
	EventRevocationApproved:  "revocation.approved",
	EventRevocationDenied:    "revocation.denied",
	EventRevocationCancelled: "revocation.cancelled",
}

type BaseEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

type AuditEvent struct {
	BaseEvent
	Event     string         `json:"event"`
	ActorKind string         `json:"actorKind"`
	ActorID   string         `json:"actorId"`
	Success   bool           `json:"success"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewAuditEvent(event, actorKind, actorID string, success bool, metadata map[string]any) *AuditEvent {
	return &AuditEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      routingKeys[event],
			Timestamp: time.Now().Unix(),
			Version:   "1.0",
		},
		Event:     event,
		ActorKind: actorKind,
		ActorID:   actorID,
		Success:   success,
		Metadata:  metadata,
	}
}

func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func (e *AuditEvent) RoutingKey() string {
	return routingKeys[e.Event]
}
