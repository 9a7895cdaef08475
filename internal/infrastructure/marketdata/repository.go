package marketdata

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores bar history in Postgres and serves close-price series
// to the factor analyzers.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

const insertBarQuery = `
	INSERT INTO bars (symbol, open, high, low, close, volume, window_start)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (symbol, window_start) DO UPDATE
	SET open = EXCLUDED.open,
	    high = EXCLUDED.high,
	    low = EXCLUDED.low,
	    close = EXCLUDED.close,
	    volume = EXCLUDED.volume`

func (r *Repository) AddBar(ctx context.Context, bar *domain.Bar) error {
	if bar == nil {
		return errors.New("nil bar")
	}
	_, err := r.pool.Exec(ctx, insertBarQuery,
		bar.Symbol,
		bar.Open,
		bar.High,
		bar.Low,
		bar.Close,
		bar.Volume,
		bar.WindowStart,
	)
	return err
}

func (r *Repository) AddBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(bars))
	for i := range bars {
		rows = append(rows, []interface{}{
			bars[i].Symbol,
			bars[i].Open,
			bars[i].High,
			bars[i].Low,
			bars[i].Close,
			bars[i].Volume,
			bars[i].WindowStart,
		})
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"bars"},
		[]string{"symbol", "open", "high", "low", "close", "volume", "window_start"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// GetRecentCloses returns up to limit closes for a symbol, oldest first.
func (r *Repository) GetRecentCloses(ctx context.Context, symbol string, limit int) ([]float64, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	const query = `
		SELECT close FROM (
			SELECT close, window_start
			FROM bars
			WHERE symbol = $1
			ORDER BY window_start DESC
			LIMIT $2
		) recent
		ORDER BY window_start ASC`
	rows, err := r.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

// GetCloseSeries returns recent closes for several symbols, each oldest
// first. Symbols with no history are absent from the result.
func (r *Repository) GetCloseSeries(ctx context.Context, symbols []string, limit int) (map[string][]float64, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	const query = `
		SELECT symbol, close FROM (
			SELECT symbol, close, window_start,
			       row_number() OVER (PARTITION BY symbol ORDER BY window_start DESC) AS rn
			FROM bars
			WHERE symbol = ANY($1)
		) ranked
		WHERE rn <= $2
		ORDER BY symbol, window_start ASC`
	rows, err := r.pool.Query(ctx, query, symbols, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	series := make(map[string][]float64, len(symbols))
	for rows.Next() {
		var symbol string
		var c float64
		if err := rows.Scan(&symbol, &c); err != nil {
			return nil, err
		}
		series[symbol] = append(series[symbol], c)
	}
	return series, rows.Err()
}
