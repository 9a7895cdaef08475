package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appalerts "github.com/Dmurillo722/moby/internal/application/service/alerts"
	appfactors "github.com/Dmurillo722/moby/internal/application/service/factors"
	domainalerts "github.com/Dmurillo722/moby/internal/domain/entity/alerts"
	domainmarketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"
	"github.com/Dmurillo722/moby/internal/infrastructure/stream"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAlertRepo struct {
	rules  []domainalerts.AlertRule
	assets map[string]domainalerts.Asset
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{assets: map[string]domainalerts.Asset{}}
}

func (f *fakeAlertRepo) FindRules(context.Context, string, domainalerts.RuleKind) ([]domainalerts.AlertRule, error) {
	return nil, nil
}

func (f *fakeAlertRepo) Record(context.Context, *domainalerts.AlertEvent) error { return nil }

func (f *fakeAlertRepo) CreateRule(_ context.Context, rule *domainalerts.AlertRule) error {
	f.rules = append(f.rules, *rule)
	return nil
}

func (f *fakeAlertRepo) DeleteRule(_ context.Context, id uuid.UUID) error {
	for i, rule := range f.rules {
		if rule.ID == id {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAlertRepo) ListRulesByUser(_ context.Context, userID uuid.UUID) ([]domainalerts.AlertRule, error) {
	var out []domainalerts.AlertRule
	for _, rule := range f.rules {
		if rule.UserID == userID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (f *fakeAlertRepo) EnsureAsset(_ context.Context, symbol string) (domainalerts.Asset, error) {
	asset, ok := f.assets[symbol]
	if !ok {
		asset = domainalerts.Asset{ID: uuid.New(), Symbol: symbol}
		f.assets[symbol] = asset
	}
	return asset, nil
}

func (f *fakeAlertRepo) Close() {}

type fakeMarketDataRepo struct {
	bars   []domainmarketdata.Bar
	closes map[string][]float64
}

func (f *fakeMarketDataRepo) AddBar(_ context.Context, bar *domainmarketdata.Bar) error {
	f.bars = append(f.bars, *bar)
	return nil
}

func (f *fakeMarketDataRepo) AddBars(_ context.Context, bars []domainmarketdata.Bar) error {
	f.bars = append(f.bars, bars...)
	return nil
}

func (f *fakeMarketDataRepo) GetRecentCloses(_ context.Context, symbol string, limit int) ([]float64, error) {
	closes := f.closes[symbol]
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	return closes, nil
}

func (f *fakeMarketDataRepo) GetCloseSeries(ctx context.Context, symbols []string, limit int) (map[string][]float64, error) {
	out := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		if closes, err := f.GetRecentCloses(ctx, symbol, limit); err == nil && len(closes) > 0 {
			out[symbol] = closes
		}
	}
	return out, nil
}

func (f *fakeMarketDataRepo) Close() {}

func newTestHandler(alertRepo *fakeAlertRepo, mdRepo *fakeMarketDataRepo) *Handler {
	queue := stream.NewQueue(8)
	return NewHandler(
		appalerts.NewService(alertRepo),
		appfactors.NewService(mdRepo, 4, []string{"AAPL", "MSFT"}),
		mdRepo,
		nil,
		queue,
		nil,
		0,
	)
}

func doJSON(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newTestHandler(newFakeAlertRepo(), &fakeMarketDataRepo{})

	w := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStreamStatus(t *testing.T) {
	h := newTestHandler(newFakeAlertRepo(), &fakeMarketDataRepo{})

	w := doJSON(t, h, http.MethodGet, "/api/v1/stream/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.EqualValues(t, 0, status["queue_length"])
	assert.EqualValues(t, 8, status["queue_capacity"])
	assert.EqualValues(t, 0, status["dropped_frames"])
}

func TestAlertRuleLifecycle(t *testing.T) {
	repo := newFakeAlertRepo()
	h := newTestHandler(repo, &fakeMarketDataRepo{})

	userID := uuid.New()
	w := doJSON(t, h, http.MethodPost, "/api/v1/alerts/", alertRulePayload{
		UserID: userID.String(),
		Symbol: "aapl",
		Kind:   "size",
		Email:  true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created domainalerts.AlertRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "AAPL", created.Symbol)

	w = doJSON(t, h, http.MethodGet, "/api/v1/alerts/?user_id="+userID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed []domainalerts.AlertRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	w = doJSON(t, h, http.MethodDelete, "/api/v1/alerts/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.rules)
}

func TestCreateAlertRuleRejectsBadInput(t *testing.T) {
	h := newTestHandler(newFakeAlertRepo(), &fakeMarketDataRepo{})

	w := doJSON(t, h, http.MethodPost, "/api/v1/alerts/", alertRulePayload{
		UserID: "not-a-uuid",
		Symbol: "AAPL",
		Kind:   "size",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/v1/alerts/", alertRulePayload{
		UserID: uuid.NewString(),
		Symbol: "AAPL",
		Kind:   "price_above",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddBarsBatchAndCloses(t *testing.T) {
	md := &fakeMarketDataRepo{closes: map[string][]float64{}}
	h := newTestHandler(newFakeAlertRepo(), md)

	bars := []domainmarketdata.Bar{
		{Symbol: "AAPL", Open: 100, High: 102, Low: 99, Close: 101, Volume: 4000},
		{Symbol: "AAPL", Open: 101, High: 103, Low: 100, Close: 102, Volume: 3500},
	}
	w := doJSON(t, h, http.MethodPost, "/api/v1/marketdata/bars/batch", bars)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, md.bars, 2)

	md.closes["AAPL"] = []float64{101, 102}
	w = doJSON(t, h, http.MethodGet, "/api/v1/marketdata/bars/closes?symbol=AAPL&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"AAPL","closes":[101,102]}`, w.Body.String())

	w = doJSON(t, h, http.MethodGet, "/api/v1/marketdata/bars/closes?symbol=AAPL", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMomentum(t *testing.T) {
	md := &fakeMarketDataRepo{closes: map[string][]float64{
		"AAPL": {100, 100, 100, 100, 110},
	}}
	h := newTestHandler(newFakeAlertRepo(), md)

	w := doJSON(t, h, http.MethodGet, "/api/v1/factors/momentum?symbol=AAPL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"AAPL","momentum":10}`, w.Body.String())

	w = doJSON(t, h, http.MethodGet, "/api/v1/factors/momentum?symbol=MSFT", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/factors/momentum", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBasketCorrelations(t *testing.T) {
	md := &fakeMarketDataRepo{closes: map[string][]float64{
		"AAPL": {100, 101, 103, 102, 105},
		"MSFT": {200, 202, 206, 204, 210},
	}}
	h := newTestHandler(newFakeAlertRepo(), md)

	w := doJSON(t, h, http.MethodGet, "/api/v1/factors/correlation", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var scores map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scores))
	assert.InDelta(t, 1.0, scores["AAPL"], 1e-9)
	assert.InDelta(t, 1.0, scores["MSFT"], 1e-9)
}
