package interfaces

import (
	"context"

	alerts "github.com/Dmurillo722/moby/internal/domain/entity/alerts"

	"github.com/google/uuid"
)

// RuleResolver looks up the standing alert rules for an instrument.
type RuleResolver interface {
	FindRules(ctx context.Context, symbol string, kind alerts.RuleKind) ([]alerts.AlertRule, error)
}

// EventRecorder persists fired alert events. Append-only.
type EventRecorder interface {
	Record(ctx context.Context, event *alerts.AlertEvent) error
}

// Notifier delivers an alert message to a destination. Failures are
// non-fatal to the caller; retries are not the core's responsibility.
type Notifier interface {
	Notify(ctx context.Context, destination, message string) error
}

// AlertPublisher fans fired events out to external consumers.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event *alerts.AlertEvent) error
}

// AlertRepository is the full persistence surface behind the alerts
// service: rule CRUD plus the read/append paths the engine uses.
type AlertRepository interface {
	RuleResolver
	EventRecorder

	CreateRule(ctx context.Context, rule *alerts.AlertRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	ListRulesByUser(ctx context.Context, userID uuid.UUID) ([]alerts.AlertRule, error)
	EnsureAsset(ctx context.Context, symbol string) (alerts.Asset, error)

	Close()
}
