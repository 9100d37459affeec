package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moolah-app/moolah-api/internal/models"
)

// PurchaseUpdate carries the persistence payload for one marketplace buy.
type PurchaseUpdate struct {
	StudentID string
	Price     int
	Icon      *string
	Entry     models.Transaction
}

// MarketplaceRepository manages purchasable items and the conditional
// deduction that pays for them.
type MarketplaceRepository struct {
	db *sqlx.DB
}

// NewMarketplaceRepository constructs a MarketplaceRepository.
func NewMarketplaceRepository(db *sqlx.DB) *MarketplaceRepository {
	return &MarketplaceRepository{db: db}
}

// List returns all items.
func (r *MarketplaceRepository) List(ctx context.Context) ([]models.MarketplaceItem, error) {
	var items []models.MarketplaceItem
	const query = "SELECT id, name, price, icon, created_at FROM marketplace_items ORDER BY price ASC, name ASC"
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list marketplace items: %w", err)
	}
	return items, nil
}

// FindByID fetches a single item.
func (r *MarketplaceRepository) FindByID(ctx context.Context, id string) (*models.MarketplaceItem, error) {
	var item models.MarketplaceItem
	const query = "SELECT id, name, price, icon, created_at FROM marketplace_items WHERE id = $1"
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts a new item.
func (r *MarketplaceRepository) Create(ctx context.Context, item *models.MarketplaceItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO marketplace_items (id, name, price, icon, created_at)
        VALUES (:id, :name, :price, :icon, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create marketplace item: %w", err)
	}
	return nil
}

// Delete removes an item.
func (r *MarketplaceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM marketplace_items WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete marketplace item: %w", err)
	}
	return requireRow(res)
}

// Purchase deducts the price, optionally grants a cosmetic icon, and appends
// the Spent ledger entry, all in one transaction. The deduction is
// conditional on sufficient balance so an overdraft can never be committed.
func (r *MarketplaceRepository) Purchase(ctx context.Context, update PurchaseUpdate) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var balance int
	err = tx.GetContext(ctx, &balance,
		"UPDATE students SET balance = balance - $2, updated_at = $3 WHERE id = $1 AND balance >= $2 RETURNING balance",
		update.StudentID, update.Price, now)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			var exists int
			if getErr := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE id = $1", update.StudentID); getErr != nil {
				return 0, getErr
			}
			return 0, ErrInsufficientBalance
		}
		return 0, err
	}

	if update.Icon != nil {
		if _, err := tx.ExecContext(ctx,
			"UPDATE students SET cow_icon = $2, updated_at = $3 WHERE id = $1",
			update.StudentID, *update.Icon, now); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("grant icon: %w", err)
		}
	}

	if err := insertTransaction(ctx, tx, &update.Entry); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}
