package factors

import (
	"context"
	"errors"
	"strings"

	"github.com/Dmurillo722/moby/internal/analytics/factors"
	interfaces "github.com/Dmurillo722/moby/internal/domain/interfaces"
)

var ErrMissingSymbol = errors.New("symbol is required")

// Service computes factor signals (momentum, basket correlation) from the
// stored close-price history.
type Service struct {
	repo        interfaces.MarketDataRepository
	momentum    *factors.MomentumAnalyzer
	correlation *factors.CorrelationAnalyzer
	basket      []string
}

// NewService wires the analyzers over the market data store. basket is
// the fixed reference universe for correlation scoring.
func NewService(repo interfaces.MarketDataRepository, lookback int, basket []string) *Service {
	return &Service{
		repo:        repo,
		momentum:    factors.NewMomentumAnalyzer(lookback),
		correlation: factors.NewCorrelationAnalyzer(lookback),
		basket:      basket,
	}
}

// MomentumScore returns the rate-of-change momentum for one symbol.
// factors.ErrInsufficientData passes through when history is short.
func (s *Service) MomentumScore(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, ErrMissingSymbol
	}
	closes, err := s.repo.GetRecentCloses(ctx, symbol, s.momentum.Lookback()+1)
	if err != nil {
		return 0, err
	}
	return s.momentum.ComputeFromCloses(closes)
}

// BasketCorrelations returns the average pairwise correlation score for
// every member of the configured basket.
func (s *Service) BasketCorrelations(ctx context.Context) (map[string]float64, error) {
	if len(s.basket) < 2 {
		return nil, factors.ErrInsufficientData
	}
	series, err := s.repo.GetCloseSeries(ctx, s.basket, s.correlation.Lookback()+1)
	if err != nil {
		return nil, err
	}
	if len(series) < len(s.basket) {
		// a basket member with no stored history invalidates the batch
		return nil, factors.ErrInsufficientData
	}
	return s.correlation.Compute(series)
}

// RelativeCorrelation scores one symbol against the basket: the average
// of its pairwise correlation with every member holding enough history.
func (s *Service) RelativeCorrelation(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, ErrMissingSymbol
	}
	target, err := s.repo.GetRecentCloses(ctx, symbol, s.correlation.Lookback()+1)
	if err != nil {
		return 0, err
	}
	series, err := s.repo.GetCloseSeries(ctx, s.basket, s.correlation.Lookback()+1)
	if err != nil {
		return 0, err
	}
	return s.correlation.ComputeSingle(target, series)
}
