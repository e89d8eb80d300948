package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SupplierService manages a business's known suppliers.
type SupplierService interface {
	ListSuppliers(ctx context.Context, businessID int) ([]Supplier, error)
	CreateSupplier(ctx context.Context, businessID int, name string, phone *string) (*Supplier, error)
}

type supplierService struct {
	pool *pgxpool.Pool
}

// NewSupplierService constructs a SupplierService backed by PostgreSQL.
func NewSupplierService(pool *pgxpool.Pool) SupplierService {
	return &supplierService{pool: pool}
}

func (s *supplierService) ListSuppliers(ctx context.Context, businessID int) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, business_id, name, phone, is_active, created_at
		FROM suppliers
		WHERE business_id = $1 AND is_active = true
		ORDER BY name`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.BusinessID, &sup.Name, &sup.Phone,
			&sup.IsActive, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *supplierService) CreateSupplier(ctx context.Context, businessID int, name string, phone *string) (*Supplier, error) {
	sup := &Supplier{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (business_id, name, phone)
		VALUES ($1, $2, $3)
		RETURNING id, business_id, name, phone, is_active, created_at`,
		businessID, name, phone,
	).Scan(&sup.ID, &sup.BusinessID, &sup.Name, &sup.Phone, &sup.IsActive, &sup.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create supplier %q: %w", name, err)
	}
	return sup, nil
}
