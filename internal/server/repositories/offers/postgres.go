package offers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dairykeeper/internal/common"
	"github.com/dmitrijs2005/dairykeeper/internal/dbx"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

const selectOffer = `SELECT id, name, description, tabs, duration_days, price, currency FROM offers`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*entitlements.SubscriptionOffer, error) {
	var (
		o    entitlements.SubscriptionOffer
		tabs string
	)
	if err := row.Scan(&o.ID, &o.Name, &o.Description, &tabs, &o.DurationDays, &o.Price, &o.Currency); err != nil {
		return nil, err
	}
	t, err := entitlements.ParseTabList(tabs)
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", o.ID, err)
	}
	o.Tabs = t
	return &o, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]entitlements.SubscriptionOffer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []entitlements.SubscriptionOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// List returns every active offer, cheapest first.
func (r *PostgresRepository) List(ctx context.Context) ([]entitlements.SubscriptionOffer, error) {
	query := selectOffer + `
		 WHERE active
		 ORDER BY price, id
		 `
	return r.list(ctx, query)
}

// ListByTab returns the active offers that unlock tab, cheapest first.
func (r *PostgresRepository) ListByTab(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error) {
	query := selectOffer + `
		 WHERE active AND (',' || tabs || ',') LIKE '%,' || $1 || ',%'
		 ORDER BY price, id
		 `
	return r.list(ctx, query, string(tab))
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*entitlements.SubscriptionOffer, error) {
	query := selectOffer + `
		 WHERE id = $1 AND active
		 `
	o, err := scanOffer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}
