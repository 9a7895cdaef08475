package alerts

import (
	"context"
	"errors"
	"strings"

	domain "github.com/Dmurillo722/moby/internal/domain/entity/alerts"
	interfaces "github.com/Dmurillo722/moby/internal/domain/interfaces"

	"github.com/google/uuid"
)

var (
	ErrMissingSymbol    = errors.New("symbol is required")
	ErrMissingUser      = errors.New("user id is required")
	ErrInvalidRuleKind  = errors.New("invalid rule kind")
	ErrInvalidThreshold = errors.New("threshold must be positive")
)

// Service validates and executes alert rule management on behalf of the
// HTTP layer.
type Service struct {
	repo interfaces.AlertRepository
}

func NewService(repo interfaces.AlertRepository) *Service {
	return &Service{repo: repo}
}

// CreateRuleInput is the caller-facing shape for new rules.
type CreateRuleInput struct {
	UserID    uuid.UUID
	Symbol    string
	Kind      domain.RuleKind
	Threshold *float64
	Email     bool
	SMS       bool
}

// CreateRule resolves (or creates) the asset for the symbol and stores
// the rule against it.
func (s *Service) CreateRule(ctx context.Context, input CreateRuleInput) (*domain.AlertRule, error) {
	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
	if symbol == "" {
		return nil, ErrMissingSymbol
	}
	if input.UserID == uuid.Nil {
		return nil, ErrMissingUser
	}
	if !input.Kind.Valid() {
		return nil, ErrInvalidRuleKind
	}
	if input.Threshold != nil && *input.Threshold <= 0 {
		return nil, ErrInvalidThreshold
	}

	asset, err := s.repo.EnsureAsset(ctx, symbol)
	if err != nil {
		return nil, err
	}

	rule := &domain.AlertRule{
		ID:        uuid.New(),
		UserID:    input.UserID,
		AssetID:   asset.ID,
		Symbol:    symbol,
		Kind:      input.Kind,
		Threshold: input.Threshold,
		Email:     input.Email,
		SMS:       input.SMS,
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.New("rule id is required")
	}
	return s.repo.DeleteRule(ctx, id)
}

func (s *Service) ListRulesByUser(ctx context.Context, userID uuid.UUID) ([]domain.AlertRule, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUser
	}
	return s.repo.ListRulesByUser(ctx, userID)
}
