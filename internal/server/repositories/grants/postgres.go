package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/common"
	"github.com/dmitrijs2005/dairykeeper/internal/dbx"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const selectGrant = `SELECT id, offer_id, offer_name, tabs, start_date, end_date, status,
		 amount_paid, currency, payment_method, transaction_ref
		 FROM grants`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*entitlements.SubscriptionGrant, error) {
	var (
		g    entitlements.SubscriptionGrant
		tabs string
	)
	err := row.Scan(&g.ID, &g.OfferID, &g.OfferName, &tabs, &g.StartDate, &g.EndDate, &g.Status,
		&g.AmountPaid, &g.Currency, &g.PaymentMethod, &g.TransactionRef)
	if err != nil {
		return nil, err
	}
	t, err := entitlements.ParseTabList(tabs)
	if err != nil {
		return nil, fmt.Errorf("grant %s: %w", g.ID, err)
	}
	g.Tabs = t
	g.StartDate = g.StartDate.UTC()
	g.EndDate = g.EndDate.UTC()
	return &g, nil
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, g *entitlements.SubscriptionGrant) error {
	query :=
		`INSERT INTO grants (id, user_id, offer_id, offer_name, tabs, start_date, end_date, status,
		 amount_paid, currency, payment_method, transaction_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 `
	_, err := r.db.ExecContext(ctx, query,
		g.ID, userID, g.OfferID, g.OfferName, entitlements.FormatTabList(g.Tabs), g.StartDate, g.EndDate, string(g.Status),
		g.AmountPaid, g.Currency, string(g.PaymentMethod), g.TransactionRef)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("db error: %w: %w", common.ErrorAlreadyExists, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]entitlements.SubscriptionGrant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []entitlements.SubscriptionGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// ListByUser returns the user's whole grant history, latest ending first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]entitlements.SubscriptionGrant, error) {
	query := selectGrant + `
		 WHERE user_id = $1
		 ORDER BY end_date DESC, id
		 `
	return r.list(ctx, query, userID)
}

// ListActive returns the grants in force at now, latest ending first.
func (r *PostgresRepository) ListActive(ctx context.Context, userID string, now time.Time) ([]entitlements.SubscriptionGrant, error) {
	query := selectGrant + `
		 WHERE user_id = $1 AND status = 'active' AND start_date <= $2 AND end_date > $2
		 ORDER BY end_date DESC, id
		 `
	return r.list(ctx, query, userID, now)
}

func (r *PostgresRepository) FindByTransactionRef(ctx context.Context, userID, ref string) (*entitlements.SubscriptionGrant, error) {
	query := selectGrant + `
		 WHERE user_id = $1 AND transaction_ref = $2
		 `
	g, err := scanGrant(r.db.QueryRowContext(ctx, query, userID, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}
