package alerts

import (
	"time"

	"github.com/google/uuid"
)

// RuleKind selects which detection path evaluates a rule.
type RuleKind string

const (
	// RuleKindSize fires on a raw trade size crossing the rule threshold.
	RuleKindSize RuleKind = "size"
	// RuleKindVolumeRatio fires on a trade's share of the rolling window
	// volume crossing the rule threshold.
	RuleKindVolumeRatio RuleKind = "volume_ratio"
)

// Valid reports whether the kind is one the detection engine evaluates.
func (k RuleKind) Valid() bool {
	return k == RuleKindSize || k == RuleKindVolumeRatio
}

// Asset is a tracked instrument.
type Asset struct {
	ID     uuid.UUID `json:"id"`
	Symbol string    `json:"symbol"`
}

// AlertRule is a subscriber's standing request to be told about anomalous
// activity on one instrument. Read-only from the detection engine's
// perspective; mutated only through the alerts service.
type AlertRule struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	AssetID   uuid.UUID `json:"asset_id"`
	Symbol    string    `json:"symbol"`
	Kind      RuleKind  `json:"kind"`
	Threshold *float64  `json:"threshold,omitempty"`
	Email     bool      `json:"email"`
	SMS       bool      `json:"sms"`
	CreatedAt time.Time `json:"created_at"`

	// Contact fields resolved alongside the rule so the notifier never
	// needs a second lookup.
	ContactEmail string `json:"-"`
	ContactPhone string `json:"-"`
}

// AlertEvent records one firing of a rule. Never mutated after creation.
type AlertEvent struct {
	ID          uuid.UUID `json:"id"`
	RuleID      uuid.UUID `json:"rule_id"`
	Symbol      string    `json:"symbol"`
	Confidence  string    `json:"confidence"`
	TriggeredAt time.Time `json:"triggered_at"`
}
