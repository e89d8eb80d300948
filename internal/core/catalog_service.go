package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService is the read API over the master catalog and a business's
// inventory. The receiving engine never writes through it; stock mutation
// is the receipt committer's job.
type CatalogService interface {
	// LoadCandidates returns the match-candidate union for a business:
	// every master-catalog item (annotated with the business's inventory
	// record when one exists) plus inventory-only items that were created
	// from past invoices without a catalog link.
	LoadCandidates(ctx context.Context, businessID int) ([]CatalogCandidate, error)
	GetCatalogItem(ctx context.Context, id int) (*CatalogItem, error)
	GetInventoryItem(ctx context.Context, businessID, id int) (*InventoryItem, error)
	ListStock(ctx context.Context, businessID int) ([]InventoryItem, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

// NewCatalogService constructs a CatalogService backed by PostgreSQL.
func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func (s *catalogService) LoadCandidates(ctx context.Context, businessID int) ([]CatalogCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ci.id, ii.id, ci.name, ci.unit, ci.count_step,
		       COALESCE(ii.cost_per_unit, ci.default_cost_per_unit)
		FROM catalog_items ci
		LEFT JOIN inventory_items ii
		       ON ii.catalog_item_id = ci.id AND ii.business_id = $1
		ORDER BY ci.id`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("load catalog candidates: %w", err)
	}
	defer rows.Close()

	var candidates []CatalogCandidate
	for rows.Next() {
		var c CatalogCandidate
		if err := rows.Scan(&c.CatalogItemID, &c.InventoryItemID, &c.Name, &c.Unit,
			&c.CountStep, &c.CostPerUnit); err != nil {
			return nil, fmt.Errorf("scan catalog candidate: %w", err)
		}
		c.InInventory = c.InventoryItemID != nil
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Inventory items without a catalog link are candidates too; they carry
	// a zero catalog id and can only match by name.
	orphanRows, err := s.pool.Query(ctx, `
		SELECT id, name, unit, count_step, cost_per_unit
		FROM inventory_items
		WHERE business_id = $1 AND catalog_item_id IS NULL
		ORDER BY id`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("load unlinked inventory candidates: %w", err)
	}
	defer orphanRows.Close()

	for orphanRows.Next() {
		var c CatalogCandidate
		var invID int
		if err := orphanRows.Scan(&invID, &c.Name, &c.Unit, &c.CountStep, &c.CostPerUnit); err != nil {
			return nil, fmt.Errorf("scan unlinked inventory candidate: %w", err)
		}
		c.InventoryItemID = &invID
		c.InInventory = true
		candidates = append(candidates, c)
	}
	return candidates, orphanRows.Err()
}

func (s *catalogService) GetCatalogItem(ctx context.Context, id int) (*CatalogItem, error) {
	item := &CatalogItem{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, unit, default_cost_per_unit, count_step
		FROM catalog_items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.Name, &item.Unit, &item.DefaultCostPerUnit, &item.CountStep)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("catalog item %d not found", id)
		}
		return nil, fmt.Errorf("get catalog item %d: %w", id, err)
	}
	return item, nil
}

func (s *catalogService) GetInventoryItem(ctx context.Context, businessID, id int) (*InventoryItem, error) {
	item := &InventoryItem{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, business_id, catalog_item_id, supplier_id, name, unit,
		       count_step, current_stock, cost_per_unit, created_at
		FROM inventory_items
		WHERE business_id = $1 AND id = $2`,
		businessID, id,
	).Scan(&item.ID, &item.BusinessID, &item.CatalogItemID, &item.SupplierID,
		&item.Name, &item.Unit, &item.CountStep, &item.CurrentStock,
		&item.CostPerUnit, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("inventory item %d not found", id)
		}
		return nil, fmt.Errorf("get inventory item %d: %w", id, err)
	}
	return item, nil
}

func (s *catalogService) ListStock(ctx context.Context, businessID int) ([]InventoryItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, business_id, catalog_item_id, supplier_id, name, unit,
		       count_step, current_stock, cost_per_unit, created_at
		FROM inventory_items
		WHERE business_id = $1
		ORDER BY name`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		var item InventoryItem
		if err := rows.Scan(&item.ID, &item.BusinessID, &item.CatalogItemID, &item.SupplierID,
			&item.Name, &item.Unit, &item.CountStep, &item.CurrentStock,
			&item.CostPerUnit, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
