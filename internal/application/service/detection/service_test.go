package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dmurillo722/moby/internal/analytics/volume"
	alerts "github.com/Dmurillo722/moby/internal/domain/entity/alerts"
	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu    sync.Mutex
	rules map[alerts.RuleKind][]alerts.AlertRule
	calls map[alerts.RuleKind]int
	err   error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		rules: map[alerts.RuleKind][]alerts.AlertRule{},
		calls: map[alerts.RuleKind]int{},
	}
}

func (f *fakeResolver) FindRules(_ context.Context, _ string, kind alerts.RuleKind) ([]alerts.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[kind], nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []alerts.AlertEvent
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, event *alerts.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *event)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	errOn string
}

func (f *fakeNotifier) Notify(_ context.Context, destination, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if destination == f.errOn {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, destination)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sizeRule(threshold float64, email bool) alerts.AlertRule {
	return alerts.AlertRule{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Symbol:       "AAPL",
		Kind:         alerts.RuleKindSize,
		Threshold:    &threshold,
		Email:        email,
		ContactEmail: "whale@example.com",
	}
}

func newTestEngine(resolver *fakeResolver, recorder *fakeRecorder, notifier *fakeNotifier) *Engine {
	return NewEngine(Config{Window: 5 * time.Minute}, resolver, recorder, notifier, nil, testLogger())
}

func tradeOf(symbol string, size float64, ts time.Time) *marketdata.Trade {
	return &marketdata.Trade{Symbol: symbol, Size: size, Price: 100, Timestamp: ts}
}

func TestSizeRuleFiresOncePerRule(t *testing.T) {
	resolver := newFakeResolver()
	rule := sizeRule(500, true)
	resolver.rules[alerts.RuleKindSize] = []alerts.AlertRule{rule}
	recorder := &fakeRecorder{}
	notifier := &fakeNotifier{}
	engine := newTestEngine(resolver, recorder, notifier)

	err := engine.ProcessTrade(context.Background(), tradeOf("AAPL", 1500, time.Now().UTC()))
	require.NoError(t, err)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, rule.ID, recorder.events[0].RuleID)
	assert.Equal(t, "AAPL", recorder.events[0].Symbol)
	assert.Equal(t, "1500", recorder.events[0].Confidence)
	assert.Equal(t, []string{"whale@example.com"}, notifier.sent)
}

func TestSmallTradeSkipsRuleResolution(t *testing.T) {
	resolver := newFakeResolver()
	recorder := &fakeRecorder{}
	engine := newTestEngine(resolver, recorder, &fakeNotifier{})

	// below the size gate and the first trade of a window has ratio 0
	err := engine.ProcessTrade(context.Background(), tradeOf("AAPL", 10, time.Now().UTC()))
	require.NoError(t, err)

	assert.Zero(t, resolver.calls[alerts.RuleKindSize])
	assert.Zero(t, resolver.calls[alerts.RuleKindVolumeRatio])
	assert.Empty(t, recorder.events)
}

func TestPerRuleThresholdOverridesDefault(t *testing.T) {
	resolver := newFakeResolver()
	resolver.rules[alerts.RuleKindSize] = []alerts.AlertRule{sizeRule(5000, false)}
	recorder := &fakeRecorder{}
	engine := newTestEngine(resolver, recorder, &fakeNotifier{})

	// passes the engine gate (>= 1000) but not the rule's own threshold
	require.NoError(t, engine.ProcessTrade(context.Background(), tradeOf("AAPL", 2000, time.Now().UTC())))
	assert.Empty(t, recorder.events)

	require.NoError(t, engine.ProcessTrade(context.Background(), tradeOf("AAPL", 6000, time.Now().UTC())))
	assert.Len(t, recorder.events, 1)
}

func TestNotifyFailureStillRecords(t *testing.T) {
	resolver := newFakeResolver()
	resolver.rules[alerts.RuleKindSize] = []alerts.AlertRule{sizeRule(500, true)}
	recorder := &fakeRecorder{}
	notifier := &fakeNotifier{errOn: "whale@example.com"}
	engine := newTestEngine(resolver, recorder, notifier)

	err := engine.ProcessTrade(context.Background(), tradeOf("AAPL", 1500, time.Now().UTC()))
	require.NoError(t, err)

	assert.Len(t, recorder.events, 1)
	assert.Empty(t, notifier.sent)
}

func TestRatioRuleFiresOnVolumeConcentration(t *testing.T) {
	resolver := newFakeResolver()
	ratioThreshold := 0.20
	resolver.rules[alerts.RuleKindVolumeRatio] = []alerts.AlertRule{{
		ID:        uuid.New(),
		Symbol:    "TSLA",
		Kind:      alerts.RuleKindVolumeRatio,
		Threshold: &ratioThreshold,
	}}
	recorder := &fakeRecorder{}
	engine := newTestEngine(resolver, recorder, &fakeNotifier{})

	ctx := context.Background()
	now := time.Now().UTC()

	// the first trade of a window has ratio 0 by convention: no firing
	require.NoError(t, engine.ProcessTrade(ctx, tradeOf("TSLA", 800, now)))
	require.Empty(t, recorder.events)

	// 200 against 800 rolling is a 0.25 ratio: Extreme, above the rule bound
	require.NoError(t, engine.ProcessTrade(ctx, tradeOf("TSLA", 200, now.Add(time.Second))))

	require.Len(t, recorder.events, 1)
	assert.Contains(t, recorder.events[0].Confidence, string(volume.SignificanceExtreme))
}

func TestRatioBelowRuleThresholdDoesNotFire(t *testing.T) {
	resolver := newFakeResolver()
	ratioThreshold := 0.50
	resolver.rules[alerts.RuleKindVolumeRatio] = []alerts.AlertRule{{
		ID:        uuid.New(),
		Symbol:    "TSLA",
		Kind:      alerts.RuleKindVolumeRatio,
		Threshold: &ratioThreshold,
	}}
	recorder := &fakeRecorder{}
	engine := newTestEngine(resolver, recorder, &fakeNotifier{})

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, engine.ProcessTrade(ctx, tradeOf("TSLA", 800, now)))
	// 0.25 ratio classifies Extreme but stays under the rule's 0.50
	require.NoError(t, engine.ProcessTrade(ctx, tradeOf("TSLA", 200, now.Add(time.Second))))

	assert.Equal(t, 1, resolver.calls[alerts.RuleKindVolumeRatio])
	assert.Empty(t, recorder.events)
}

func TestBothRuleKindsEvaluateIndependently(t *testing.T) {
	resolver := newFakeResolver()
	sizeThreshold := 100.0
	resolver.rules[alerts.RuleKindSize] = []alerts.AlertRule{sizeRule(sizeThreshold, false)}
	resolver.rules[alerts.RuleKindVolumeRatio] = []alerts.AlertRule{{
		ID:     uuid.New(),
		Symbol: "AAPL",
		Kind:   alerts.RuleKindVolumeRatio,
	}}
	recorder := &fakeRecorder{}
	engine := newTestEngine(resolver, recorder, &fakeNotifier{})

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, engine.ProcessTrade(ctx, tradeOf("AAPL", 3000, now)))
	// second large trade: size rule fires again, and at 1500/3000 = 0.5
	// the ratio rule fires too
	require.NoError(t, engine.ProcessTrade(ctx, tradeOf("AAPL", 1500, now.Add(time.Second))))

	kinds := map[uuid.UUID]int{}
	for _, event := range recorder.events {
		kinds[event.RuleID]++
	}
	assert.Len(t, recorder.events, 3)
	assert.Len(t, kinds, 2)
}

func TestResolverFailureSurfacesToWorker(t *testing.T) {
	resolver := newFakeResolver()
	resolver.err = errors.New("db down")
	engine := newTestEngine(resolver, &fakeRecorder{}, &fakeNotifier{})

	err := engine.ProcessTrade(context.Background(), tradeOf("AAPL", 2000, time.Now().UTC()))
	assert.Error(t, err)
}

func TestTrackerLifecycle(t *testing.T) {
	engine := newTestEngine(newFakeResolver(), &fakeRecorder{}, &fakeNotifier{})
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, engine.ProcessTrade(ctx, tradeOf("AAPL", 10, now)))
	require.NoError(t, engine.ProcessTrade(ctx, tradeOf("MSFT", 10, now)))
	assert.Equal(t, 2, engine.TrackedInstruments())

	engine.Forget("AAPL")
	assert.Equal(t, 1, engine.TrackedInstruments())
}

func TestConcurrentTradesSameSymbolKeepTotalsConsistent(t *testing.T) {
	engine := newTestEngine(newFakeResolver(), &fakeRecorder{}, &fakeNotifier{})
	ctx := context.Background()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = engine.ProcessTrade(ctx, tradeOf("AAPL", 1, now))
			}
		}()
	}
	wg.Wait()

	slot := engine.trackers.slot("AAPL")
	slot.mu.Lock()
	defer slot.mu.Unlock()
	assert.Equal(t, 400.0, slot.tracker.CurrentVolume())
	assert.Equal(t, 400, slot.tracker.TradeCount())
}
