package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	analytics "github.com/Dmurillo722/moby/internal/analytics/factors"
	appalerts "github.com/Dmurillo722/moby/internal/application/service/alerts"
	appfactors "github.com/Dmurillo722/moby/internal/application/service/factors"
	domainalerts "github.com/Dmurillo722/moby/internal/domain/entity/alerts"
	domainmarketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"
	"github.com/Dmurillo722/moby/internal/domain/interfaces"
	"github.com/Dmurillo722/moby/internal/infrastructure/stream"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	alertsBasePath     = "/api/v1/alerts"
	marketdataBasePath = "/api/v1/marketdata"
	factorsBasePath    = "/api/v1/factors"
)

var (
	errMissingUserID = errors.New("user_id query param required")
	errMissingSymbol = errors.New("symbol query param required")
)

type Handler struct {
	router     *gin.Engine
	alerts     *appalerts.Service
	factors    *appfactors.Service
	marketdata interfaces.MarketDataRepository
	connector  *stream.Connector
	queue      *stream.Queue
	cache      *redis.Client
	cacheTTL   time.Duration
}

func NewHandler(alerts *appalerts.Service, factors *appfactors.Service, md interfaces.MarketDataRepository, connector *stream.Connector, queue *stream.Queue, cache *redis.Client, cacheTTL time.Duration) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:     router,
		alerts:     alerts,
		factors:    factors,
		marketdata: md,
		connector:  connector,
		queue:      queue,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.health)
	h.router.GET("/api/v1/stream/status", h.streamStatus)

	al := h.router.Group(alertsBasePath)
	{
		al.POST("/", h.createAlertRule)
		al.GET("/", h.listAlertRules)
		al.DELETE("/:id", h.deleteAlertRule)
	}

	md := h.router.Group(marketdataBasePath)
	if h.cache != nil {
		md.Use(h.cacheMiddleware())
	}
	{
		bars := md.Group("/bars")
		{
			bars.POST("/", h.addBar)
			bars.POST("/batch", h.addBarsBatch)
			bars.GET("/closes", h.getCloses)
		}
	}

	fa := h.router.Group(factorsBasePath)
	if h.cache != nil {
		fa.Use(h.cacheMiddleware())
	}
	{
		fa.GET("/momentum", h.getMomentum)
		fa.GET("/correlation", h.getBasketCorrelations)
		fa.GET("/correlation/relative", h.getRelativeCorrelation)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// streamStatus exposes the feed connector state and queue pressure.
func (h *Handler) streamStatus(c *gin.Context) {
	status := gin.H{}
	if h.connector != nil {
		status["connector_state"] = h.connector.State().String()
	}
	if h.queue != nil {
		status["queue_length"] = h.queue.Len()
		status["queue_capacity"] = h.queue.Cap()
		status["dropped_frames"] = h.queue.Drops()
	}
	c.JSON(http.StatusOK, status)
}

// Alert handlers

type alertRulePayload struct {
	UserID    string   `json:"user_id"`
	Symbol    string   `json:"symbol"`
	Kind      string   `json:"kind"`
	Threshold *float64 `json:"threshold,omitempty"`
	Email     bool     `json:"email"`
	SMS       bool     `json:"sms"`
}

func (h *Handler) createAlertRule(c *gin.Context) {
	var payload alertRulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingUserID)
		return
	}
	rule, err := h.alerts.CreateRule(c.Request.Context(), appalerts.CreateRuleInput{
		UserID:    userID,
		Symbol:    payload.Symbol,
		Kind:      domainalerts.RuleKind(payload.Kind),
		Threshold: payload.Threshold,
		Email:     payload.Email,
		SMS:       payload.SMS,
	})
	if err != nil {
		writeError(c, statusForAlertError(err), err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) listAlertRules(c *gin.Context) {
	userID, err := parseUUIDQuery(c, "user_id")
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingUserID)
		return
	}
	rules, err := h.alerts.ListRulesByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) deleteAlertRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.alerts.DeleteRule(c.Request.Context(), id); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func statusForAlertError(err error) int {
	switch {
	case errors.Is(err, appalerts.ErrMissingSymbol),
		errors.Is(err, appalerts.ErrMissingUser),
		errors.Is(err, appalerts.ErrInvalidRuleKind),
		errors.Is(err, appalerts.ErrInvalidThreshold):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Market data handlers

func (h *Handler) addBar(c *gin.Context) {
	var bar domainmarketdata.Bar
	if err := c.ShouldBindJSON(&bar); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.marketdata.AddBar(c.Request.Context(), &bar); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) addBarsBatch(c *gin.Context) {
	var bars []domainmarketdata.Bar
	if err := c.ShouldBindJSON(&bars); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.marketdata.AddBars(c.Request.Context(), bars); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) getCloses(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbol)
		return
	}
	limit, err := parseIntQuery(c, "limit")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	closes, err := h.marketdata.GetRecentCloses(c.Request.Context(), symbol, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "closes": closes})
}

// Factor handlers

func (h *Handler) getMomentum(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbol)
		return
	}
	score, err := h.factors.MomentumScore(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, statusForFactorError(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "momentum": score})
}

func (h *Handler) getBasketCorrelations(c *gin.Context) {
	scores, err := h.factors.BasketCorrelations(c.Request.Context())
	if err != nil {
		writeError(c, statusForFactorError(err), err)
		return
	}
	c.JSON(http.StatusOK, scores)
}

func (h *Handler) getRelativeCorrelation(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbol)
		return
	}
	score, err := h.factors.RelativeCorrelation(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, statusForFactorError(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "correlation": score})
}

func statusForFactorError(err error) int {
	switch {
	case errors.Is(err, appfactors.ErrMissingSymbol):
		return http.StatusBadRequest
	case errors.Is(err, analytics.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Cache middleware

func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.FullPath(), c.Request.URL.RawQuery)
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseUUIDQuery(c *gin.Context, key string) (uuid.UUID, error) {
	value := c.Query(key)
	if value == "" {
		return uuid.Nil, fmt.Errorf("%s query param required", key)
	}
	return uuid.Parse(value)
}

func parseIntQuery(c *gin.Context, key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, fmt.Errorf("%s query param required", key)
	}
	return strconv.Atoi(value)
}
