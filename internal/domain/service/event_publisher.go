package service

import (
	"context"
	"time"
)

// IdentityEventType names a state transition of the identity records.
type IdentityEventType string

const (
	IdentityEventPlaceholderCreated IdentityEventType = "placeholder_created"
	IdentityEventAccountFinalized   IdentityEventType = "account_finalized"
	IdentityEventLinkAssociated     IdentityEventType = "link_associated"
	IdentityEventLinkRemoved        IdentityEventType = "link_removed"
)

// IdentityEvent is published after an identity transition has been committed.
type IdentityEvent struct {
	RequestID  string            `json:"request_id,omitempty"` // For distributed tracing
	Type       IdentityEventType `json:"type"`
	AccountID  string            `json:"account_id"`
	LinkID     string            `json:"link_id,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishIdentityEvent publishes an identity event for downstream consumers
	PublishIdentityEvent(ctx context.Context, event *IdentityEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
