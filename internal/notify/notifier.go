// Package notify defines the notification interface and implementations
// for admin override audit events.
package notify

import (
	"context"
	"time"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

// OverrideAction identifies what happened to an override.
type OverrideAction string

const (
	// OverrideSet is sent when an admin override is created or replaced.
	OverrideSet OverrideAction = "set"
	// OverrideCleared is sent when an admin override is removed.
	OverrideCleared OverrideAction = "cleared"
)

// OverrideEvent describes a change to a product's admin override.
type OverrideEvent struct {
	Action    OverrideAction
	ProductID string
	// Override is the override that was set. Nil for OverrideCleared.
	Override   *domain.Override
	OccurredAt time.Time
}

// Notifier delivers override audit events.
type Notifier interface {
	SendOverrideEvent(ctx context.Context, event *OverrideEvent) error
}
