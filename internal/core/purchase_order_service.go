package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PurchaseOrderLineInput is one requested line when creating an order.
type PurchaseOrderLineInput struct {
	InventoryItemID int
	OrderedQty      decimal.Decimal
}

// PurchaseOrderService manages purchase orders. The receipt committer drives
// the closed / partially_received transitions and backorder creation through
// the Tx-scoped methods, inside its own transaction.
type PurchaseOrderService interface {
	CreateOrder(ctx context.Context, businessID int, supplierID *int, lines []PurchaseOrderLineInput, notes string) (*PurchaseOrder, error)
	GetOrder(ctx context.Context, businessID, orderID int) (*PurchaseOrder, error)
	ListOrders(ctx context.Context, businessID int, status PurchaseOrderStatus) ([]PurchaseOrder, error)

	// GetOrderForUpdateTx loads an order with its lines and row-locks the
	// header so concurrent commits against the same order serialize.
	GetOrderForUpdateTx(ctx context.Context, tx pgx.Tx, businessID, orderID int) (*PurchaseOrder, error)
	// SetStatusTx transitions the order, stamping closed_at on terminal states.
	SetStatusTx(ctx context.Context, tx pgx.Tx, orderID int, status PurchaseOrderStatus) error
	// CreateBackorderTx creates a new open order holding the unreceived
	// remainder of a split commit. Every line must have positive quantity.
	CreateBackorderTx(ctx context.Context, tx pgx.Tx, businessID int, supplierID *int, lines []PurchaseOrderLineInput, notes string) (int, error)
}

type purchaseOrderService struct {
	pool *pgxpool.Pool
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by PostgreSQL.
func NewPurchaseOrderService(pool *pgxpool.Pool) PurchaseOrderService {
	return &purchaseOrderService{pool: pool}
}

func (s *purchaseOrderService) CreateOrder(ctx context.Context, businessID int, supplierID *int, lines []PurchaseOrderLineInput, notes string) (*PurchaseOrder, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("purchase order must have at least one line")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	orderID, err := s.insertOrderTx(ctx, tx, businessID, supplierID, lines, notes)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order: %w", err)
	}
	return s.GetOrder(ctx, businessID, orderID)
}

func (s *purchaseOrderService) insertOrderTx(ctx context.Context, tx pgx.Tx, businessID int, supplierID *int, lines []PurchaseOrderLineInput, notes string) (int, error) {
	var toNotes *string
	if notes != "" {
		toNotes = &notes
	}

	var orderID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (business_id, supplier_id, status, notes)
		VALUES ($1, $2, 'open', $3)
		RETURNING id`,
		businessID, supplierID, toNotes,
	).Scan(&orderID); err != nil {
		return 0, fmt.Errorf("insert purchase order: %w", err)
	}

	for i, l := range lines {
		if l.OrderedQty.IsZero() || l.OrderedQty.IsNegative() {
			return 0, fmt.Errorf("order line %d: quantity must be positive", i+1)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_order_lines (order_id, inventory_item_id, ordered_qty)
			VALUES ($1, $2, $3)`,
			orderID, l.InventoryItemID, l.OrderedQty,
		); err != nil {
			return 0, fmt.Errorf("insert order line %d: %w", i+1, err)
		}
	}
	return orderID, nil
}

func (s *purchaseOrderService) GetOrder(ctx context.Context, businessID, orderID int) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, business_id, supplier_id, status, notes, created_at, closed_at
		FROM purchase_orders
		WHERE id = $1 AND business_id = $2`,
		orderID, businessID,
	).Scan(&po.ID, &po.BusinessID, &po.SupplierID, &po.Status, &po.Notes,
		&po.CreatedAt, &po.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d not found", orderID)
		}
		return nil, fmt.Errorf("get purchase order %d: %w", orderID, err)
	}

	lines, err := s.fetchLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return po, nil
}

func (s *purchaseOrderService) ListOrders(ctx context.Context, businessID int, status PurchaseOrderStatus) ([]PurchaseOrder, error) {
	query := `
		SELECT id, business_id, supplier_id, status, notes, created_at, closed_at
		FROM purchase_orders
		WHERE business_id = $1`
	args := []any{businessID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(&po.ID, &po.BusinessID, &po.SupplierID, &po.Status,
			&po.Notes, &po.CreatedAt, &po.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

func (s *purchaseOrderService) fetchLines(ctx context.Context, orderID int) ([]PurchaseOrderLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pol.id, pol.order_id, pol.inventory_item_id, ii.name, pol.ordered_qty
		FROM purchase_order_lines pol
		JOIN inventory_items ii ON ii.id = pol.inventory_item_id
		WHERE pol.order_id = $1
		ORDER BY pol.id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch order lines for %d: %w", orderID, err)
	}
	defer rows.Close()

	var lines []PurchaseOrderLine
	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.InventoryItemID, &l.ItemName, &l.OrderedQty); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *purchaseOrderService) GetOrderForUpdateTx(ctx context.Context, tx pgx.Tx, businessID, orderID int) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := tx.QueryRow(ctx, `
		SELECT id, business_id, supplier_id, status, notes, created_at, closed_at
		FROM purchase_orders
		WHERE id = $1 AND business_id = $2
		FOR UPDATE`,
		orderID, businessID,
	).Scan(&po.ID, &po.BusinessID, &po.SupplierID, &po.Status, &po.Notes,
		&po.CreatedAt, &po.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d not found", orderID)
		}
		return nil, fmt.Errorf("lock purchase order %d: %w", orderID, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT pol.id, pol.order_id, pol.inventory_item_id, ii.name, pol.ordered_qty
		FROM purchase_order_lines pol
		JOIN inventory_items ii ON ii.id = pol.inventory_item_id
		WHERE pol.order_id = $1
		ORDER BY pol.id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch order lines for %d: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.InventoryItemID, &l.ItemName, &l.OrderedQty); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		po.Lines = append(po.Lines, l)
	}
	return po, rows.Err()
}

func (s *purchaseOrderService) SetStatusTx(ctx context.Context, tx pgx.Tx, orderID int, status PurchaseOrderStatus) error {
	var closedAt string
	if status == OrderStatusClosed || status == OrderStatusCancelled {
		closedAt = ", closed_at = NOW()"
	}
	tag, err := tx.Exec(ctx,
		fmt.Sprintf("UPDATE purchase_orders SET status = $1%s WHERE id = $2", closedAt),
		status, orderID,
	)
	if err != nil {
		return fmt.Errorf("set order %d status to %s: %w", orderID, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d not found", orderID)
	}
	return nil
}

func (s *purchaseOrderService) CreateBackorderTx(ctx context.Context, tx pgx.Tx, businessID int, supplierID *int, lines []PurchaseOrderLineInput, notes string) (int, error) {
	for i, l := range lines {
		if !l.OrderedQty.IsPositive() {
			return 0, fmt.Errorf("backorder line %d: shortfall must be positive, got %s", i+1, l.OrderedQty)
		}
	}
	return s.insertOrderTx(ctx, tx, businessID, supplierID, lines, notes)
}
