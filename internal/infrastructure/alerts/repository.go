package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Dmurillo722/moby/internal/domain/entity/alerts"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists assets, alert rules, and the alert event history in
// Postgres.
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

// FindRules resolves the standing rules for a symbol and kind, with the
// owning user's contact details joined in so firing needs no second
// lookup.
func (r *Repository) FindRules(ctx context.Context, symbol string, kind domain.RuleKind) ([]domain.AlertRule, error) {
	const query = `
		SELECT a.id, a.user_id, a.asset_id, s.symbol, a.kind, a.threshold,
		       a.email, a.sms, a.created_at, u.email, COALESCE(u.phone, '')
		FROM alert_rules a
		JOIN assets s ON s.id = a.asset_id
		JOIN users u ON u.id = a.user_id
		WHERE s.symbol = $1 AND a.kind = $2`
	rows, err := r.pool.Query(ctx, query, symbol, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Record appends one fired event to the history. Append-only.
func (r *Repository) Record(ctx context.Context, event *domain.AlertEvent) error {
	if event == nil {
		return errors.New("nil alert event")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	const query = `
		INSERT INTO alert_event_history (id, rule_id, symbol, confidence, triggered_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, event.ID, event.RuleID, event.Symbol, event.Confidence, event.TriggeredAt)
	return err
}

func (r *Repository) CreateRule(ctx context.Context, rule *domain.AlertRule) error {
	if rule == nil {
		return errors.New("nil alert rule")
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO alert_rules (id, user_id, asset_id, kind, threshold, email, sms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		rule.ID,
		rule.UserID,
		rule.AssetID,
		string(rule.Kind),
		rule.Threshold,
		rule.Email,
		rule.SMS,
		rule.CreatedAt,
	)
	return err
}

func (r *Repository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	return err
}

func (r *Repository) ListRulesByUser(ctx context.Context, userID uuid.UUID) ([]domain.AlertRule, error) {
	const query = `
		SELECT a.id, a.user_id, a.asset_id, s.symbol, a.kind, a.threshold,
		       a.email, a.sms, a.created_at, u.email, COALESCE(u.phone, '')
		FROM alert_rules a
		JOIN assets s ON s.id = a.asset_id
		JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// EnsureAsset returns the asset row for a symbol, creating it on first
// sight.
func (r *Repository) EnsureAsset(ctx context.Context, symbol string) (domain.Asset, error) {
	const query = `
		INSERT INTO assets (id, symbol)
		VALUES ($1, $2)
		ON CONFLICT (symbol) DO UPDATE SET symbol = EXCLUDED.symbol
		RETURNING id, symbol`
	var asset domain.Asset
	err := r.pool.QueryRow(ctx, query, uuid.New(), symbol).Scan(&asset.ID, &asset.Symbol)
	if err != nil {
		return domain.Asset{}, err
	}
	return asset, nil
}

func scanRule(rows pgx.Rows) (domain.AlertRule, error) {
	var rule domain.AlertRule
	var kind string
	err := rows.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.AssetID,
		&rule.Symbol,
		&kind,
		&rule.Threshold,
		&rule.Email,
		&rule.SMS,
		&rule.CreatedAt,
		&rule.ContactEmail,
		&rule.ContactPhone,
	)
	if err != nil {
		return domain.AlertRule{}, err
	}
	rule.Kind = domain.RuleKind(kind)
	return rule, nil
}
