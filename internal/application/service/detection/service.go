package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/Dmurillo722/moby/internal/analytics/volume"
	alerts "github.com/Dmurillo722/moby/internal/domain/entity/alerts"
	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"
	interfaces "github.com/Dmurillo722/moby/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultSizeThreshold gates the raw-size rule path when a rule carries no
// threshold of its own.
const DefaultSizeThreshold = 1000

// Config tunes the engine.
type Config struct {
	Window        time.Duration
	SizeThreshold float64
	Thresholds    volume.Thresholds
}

// Engine turns parsed trades into alert decisions. Two rule kinds are
// evaluated independently per trade: raw size against a threshold, and the
// trade's share of the rolling window volume against the classifier. Each
// matching rule fires at most once per trade, producing exactly one
// persisted event and at most one notification attempt. The event is
// recorded before notification is tried, so a delivery failure never
// loses the record.
type Engine struct {
	rules     interfaces.RuleResolver
	recorder  interfaces.EventRecorder
	notifier  interfaces.Notifier
	publisher interfaces.AlertPublisher

	trackers *trackerRegistry
	cfg      Config
	logger   *logrus.Entry
	now      func() time.Time
}

// NewEngine wires the engine to its collaborators. publisher may be nil.
func NewEngine(cfg Config, rules interfaces.RuleResolver, recorder interfaces.EventRecorder, notifier interfaces.Notifier, publisher interfaces.AlertPublisher, logger *logrus.Logger) *Engine {
	if cfg.SizeThreshold <= 0 {
		cfg.SizeThreshold = DefaultSizeThreshold
	}
	if cfg.Thresholds == (volume.Thresholds{}) {
		cfg.Thresholds = volume.DefaultThresholds
	}
	return &Engine{
		rules:     rules,
		recorder:  recorder,
		notifier:  notifier,
		publisher: publisher,
		trackers:  newTrackerRegistry(cfg.Window),
		cfg:       cfg,
		logger:    logger.WithField("component", "detection_engine"),
		now:       time.Now,
	}
}

// ProcessTrade evaluates both rule kinds for one trade. Collaborator
// failures are logged and never propagate as worker-fatal; the returned
// error covers only rule resolution problems.
func (e *Engine) ProcessTrade(ctx context.Context, trade *marketdata.Trade) error {
	// fold the trade into its instrument's window; the ratio compares the
	// trade against the volume that preceded it
	ratio := e.trackers.observe(trade)

	if trade.Size >= e.cfg.SizeThreshold {
		if err := e.evaluateSizeRules(ctx, trade); err != nil {
			return err
		}
	}

	significance := e.cfg.Thresholds.Classify(ratio)
	if significance.AtLeast(volume.SignificanceMinor) {
		if err := e.evaluateRatioRules(ctx, trade, ratio, significance); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) evaluateSizeRules(ctx context.Context, trade *marketdata.Trade) error {
	rules, err := e.rules.FindRules(ctx, trade.Symbol, alerts.RuleKindSize)
	if err != nil {
		return fmt.Errorf("resolve size rules for %s: %w", trade.Symbol, err)
	}
	for _, rule := range rules {
		threshold := e.cfg.SizeThreshold
		if rule.Threshold != nil {
			threshold = *rule.Threshold
		}
		if trade.Size < threshold {
			continue
		}
		confidence := fmt.Sprintf("%.0f", trade.Size)
		message := fmt.Sprintf(
			"Moby possible whale activity detected for %s: trade size %.0f exceeding threshold %.0f",
			trade.Symbol, trade.Size, threshold,
		)
		e.fire(ctx, rule, trade, confidence, message)
	}
	return nil
}

func (e *Engine) evaluateRatioRules(ctx context.Context, trade *marketdata.Trade, ratio float64, significance volume.Significance) error {
	rules, err := e.rules.FindRules(ctx, trade.Symbol, alerts.RuleKindVolumeRatio)
	if err != nil {
		return fmt.Errorf("resolve volume ratio rules for %s: %w", trade.Symbol, err)
	}
	for _, rule := range rules {
		if rule.Threshold != nil && ratio < *rule.Threshold {
			continue
		}
		confidence := fmt.Sprintf("%s ratio=%.4f", significance, ratio)
		message := fmt.Sprintf(
			"Moby unusual volume concentration for %s: one trade took %.1f%% of the last window (%s)",
			trade.Symbol, ratio*100, significance,
		)
		e.fire(ctx, rule, trade, confidence, message)
	}
	return nil
}

// fire records one event for the rule, then attempts delivery best-effort.
func (e *Engine) fire(ctx context.Context, rule alerts.AlertRule, trade *marketdata.Trade, confidence, message string) {
	log := e.logger.WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"user_id": rule.UserID,
		"symbol":  trade.Symbol,
		"kind":    string(rule.Kind),
	})

	event := &alerts.AlertEvent{
		ID:          uuid.New(),
		RuleID:      rule.ID,
		Symbol:      trade.Symbol,
		Confidence:  confidence,
		TriggeredAt: e.now().UTC(),
	}
	if err := e.recorder.Record(ctx, event); err != nil {
		log.WithError(err).Error("failed to record alert event")
	}

	if rule.Email && rule.ContactEmail != "" {
		if err := e.notifier.Notify(ctx, rule.ContactEmail, message); err != nil {
			log.WithError(err).Warn("email notification failed")
		}
	}
	if rule.SMS {
		// no SMS transport is wired; the decision is still observable
		log.WithField("phone", rule.ContactPhone).Info("sms delivery requested")
	}

	if e.publisher != nil {
		if err := e.publisher.PublishAlert(ctx, event); err != nil {
			log.WithError(err).Warn("alert fanout publish failed")
		}
	}

	log.WithField("confidence", confidence).Info("alert fired")
}

// TrackedInstruments reports how many instruments currently hold window
// state, for operational visibility.
func (e *Engine) TrackedInstruments() int {
	return e.trackers.size()
}

// Forget drops an instrument's window state once it is no longer
// subscribed.
func (e *Engine) Forget(symbol string) {
	e.trackers.forget(symbol)
}
