package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/cadmium/internal/database"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// unit_price is NUMERIC; reading it as text keeps the stored precision
const inventoryColumns = `id, name, description, quantity, unit_price::text, category, created_at, updated_at`

type InventoryRepository struct {
	pool *pgxpool.Pool
}

func NewInventoryRepository(db *database.DB) *InventoryRepository {
	return &InventoryRepository{pool: db.Pool}
}

// List returns items most recently updated first, optionally narrowed to one category
func (r *InventoryRepository) List(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items
		WHERE ($1 = '' OR category = $1)
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, filter.Category, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	items := make([]*models.InventoryItem, 0)
	for rows.Next() {
		var item models.InventoryItem
		err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Quantity, &item.UnitPrice,
			&item.Category, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", database.MapPostgresError(err))
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory rows: %w", err)
	}

	return items, nil
}
