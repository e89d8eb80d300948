package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ConfirmMode selects how a linked purchase order is settled at commit.
type ConfirmMode string

const (
	// ConfirmComplete closes the linked order even when some ordered units
	// were not received.
	ConfirmComplete ConfirmMode = "complete"
	// ConfirmSplit closes the linked order and creates a backorder holding
	// the per-line shortfalls.
	ConfirmSplit ConfirmMode = "split"
)

// CommitLocker serializes commits touching shared stock. Lock blocks until
// the key is held or fails with ErrLockNotObtained; the returned function
// releases it.
type CommitLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// MutexLocker is the in-process fallback CommitLocker for single-instance
// deployments without redis.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MutexLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

// ReceiptCommitter applies a confirmed reconciliation session: stock
// increments, alias learning, and purchase-order closure or backorder
// creation, all inside one transaction so the caller sees all-or-nothing.
//
// There is no mid-commit cancellation: once Commit starts it runs to
// completion or fails loudly with CommitPartialFailure.
type ReceiptCommitter struct {
	pool    *pgxpool.Pool
	aliases AliasService
	orders  PurchaseOrderService
	locker  CommitLocker
}

func NewReceiptCommitter(pool *pgxpool.Pool, aliases AliasService, orders PurchaseOrderService, locker CommitLocker) *ReceiptCommitter {
	if locker == nil {
		locker = NewMutexLocker()
	}
	return &ReceiptCommitter{pool: pool, aliases: aliases, orders: orders, locker: locker}
}

// Commit applies the session. idempotencyKey guards client retries: a key
// that was already committed returns the recorded result without
// re-applying any stock increment.
func (c *ReceiptCommitter) Commit(ctx context.Context, sess *ReconciliationSession, mode ConfirmMode, idempotencyKey string) (*CommitResult, error) {
	if err := sess.ValidateForConfirm(); err != nil {
		return nil, err
	}
	if idempotencyKey == "" {
		return nil, fmt.Errorf("commit requires an idempotency key")
	}

	// Serialize commits per business so two sessions incrementing
	// overlapping inventory items cannot race.
	release, err := c.locker.Lock(ctx, fmt.Sprintf("receiving:commit:%d", sess.BusinessID))
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin commit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Replayed key: hand back the original result.
	var prior CommitResult
	err = tx.QueryRow(ctx,
		"SELECT items_processed, new_order_id FROM receipt_commits WHERE idempotency_key = $1",
		idempotencyKey,
	).Scan(&prior.ItemsProcessed, &prior.NewOrderID)
	if err == nil {
		return &prior, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}

	result, applied, err := c.apply(ctx, tx, sess, mode)
	if err != nil {
		return nil, c.fail(sess, applied, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO receipt_commits (idempotency_key, session_id, business_id, items_processed, new_order_id)
		VALUES ($1, $2, $3, $4, $5)`,
		idempotencyKey, sess.ID, sess.BusinessID, result.ItemsProcessed, result.NewOrderID,
	); err != nil {
		return nil, c.fail(sess, applied, fmt.Errorf("record commit: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, c.fail(sess, applied, fmt.Errorf("commit transaction: %w", err))
	}
	return result, nil
}

// apply runs steps 1-3 inside tx and returns the result plus the line ids
// whose increments were issued, for failure reporting.
func (c *ReceiptCommitter) apply(ctx context.Context, tx pgx.Tx, sess *ReconciliationSession, mode ConfirmMode) (*CommitResult, []int, error) {
	var applied []int
	result := &CommitResult{}

	// Stock increments go first: if atomicity ever has to be relaxed, a
	// retried commit that re-closes an order is cheaper to repair than one
	// that double-counts stock.
	actualByItem := make(map[int]decimal.Decimal)
	for i := range sess.Lines {
		line := &sess.Lines[i]

		itemID, step, err := c.resolveItemTx(ctx, tx, sess, line)
		if err != nil {
			return nil, applied, err
		}
		line.MatchedInventoryID = &itemID

		qty := QuantizeToStep(line.ActualQty, step)
		actualByItem[itemID] = actualByItem[itemID].Add(qty)
		if !qty.IsPositive() {
			continue
		}

		// The physically counted quantity is authoritative, never the
		// supplier's invoiced quantity.
		if line.ExtractedUnitPrice != nil && line.ExtractedUnitPrice.IsPositive() {
			_, err = tx.Exec(ctx, `
				UPDATE inventory_items
				SET current_stock = current_stock + $1, cost_per_unit = $2
				WHERE id = $3`,
				qty, *line.ExtractedUnitPrice, itemID,
			)
		} else {
			_, err = tx.Exec(ctx,
				"UPDATE inventory_items SET current_stock = current_stock + $1 WHERE id = $2",
				qty, itemID,
			)
		}
		if err != nil {
			return nil, applied, fmt.Errorf("increment stock for item %d: %w", itemID, err)
		}
		applied = append(applied, line.ID)
		result.ItemsProcessed++
	}

	// Alias learning: remember the supplier's phrasing whenever it differs
	// from the canonical catalog name.
	for _, line := range sess.Lines {
		if line.MatchedCatalogID == nil || line.MissingFromInvoice {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(line.SourceText), strings.TrimSpace(line.MatchedName)) {
			continue
		}
		if err := c.aliases.RecordTx(ctx, tx, *line.MatchedCatalogID, line.SourceText, sess.SupplierName); err != nil {
			return nil, applied, err
		}
	}

	if sess.PurchaseOrderID != nil {
		newOrderID, err := c.settleOrderTx(ctx, tx, sess, mode, actualByItem)
		if err != nil {
			return nil, applied, err
		}
		result.NewOrderID = newOrderID
	}

	return result, applied, nil
}

// resolveItemTx returns the inventory item id and count step for a line,
// provisioning the inventory record when the business does not stock the
// matched catalog item yet, or when the line is a brand-new item.
func (c *ReceiptCommitter) resolveItemTx(ctx context.Context, tx pgx.Tx, sess *ReconciliationSession, line *ReceiptLine) (int, decimal.Decimal, error) {
	if line.MatchedInventoryID != nil {
		var step decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT count_step FROM inventory_items WHERE id = $1 AND business_id = $2 FOR UPDATE",
			*line.MatchedInventoryID, sess.BusinessID,
		).Scan(&step)
		if err != nil {
			return 0, decimal.Zero, fmt.Errorf("lock inventory item %d: %w", *line.MatchedInventoryID, err)
		}
		return *line.MatchedInventoryID, step, nil
	}

	if line.MatchedCatalogID != nil {
		var id int
		var step decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT id, count_step FROM inventory_items WHERE business_id = $1 AND catalog_item_id = $2 FOR UPDATE",
			sess.BusinessID, *line.MatchedCatalogID,
		).Scan(&id, &step)
		if err == nil {
			return id, step, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, decimal.Zero, fmt.Errorf("lookup inventory for catalog item %d: %w", *line.MatchedCatalogID, err)
		}

		// First receipt of this catalog item for the business.
		err = tx.QueryRow(ctx, `
			INSERT INTO inventory_items (business_id, catalog_item_id, supplier_id, name, unit, count_step, current_stock, cost_per_unit)
			SELECT $1, ci.id, $2, ci.name, ci.unit, ci.count_step, 0, ci.default_cost_per_unit
			FROM catalog_items ci WHERE ci.id = $3
			RETURNING id, count_step`,
			sess.BusinessID, sess.SupplierID, *line.MatchedCatalogID,
		).Scan(&id, &step)
		if err != nil {
			return 0, decimal.Zero, fmt.Errorf("provision inventory for catalog item %d: %w", *line.MatchedCatalogID, err)
		}
		return id, step, nil
	}

	// New item: no catalog link at all. The cleaned line text becomes the
	// item name; an embedded weight hint becomes the count step.
	name, grams := StripWeightHints(line.SourceText)
	if name == "" {
		name = line.SourceText
	}
	step := decimal.NewFromInt(1)
	unit := ""
	if grams != nil {
		step = *grams
		unit = line.ExtractedUnit
	}
	price := decimal.Zero
	if line.ExtractedUnitPrice != nil {
		price = *line.ExtractedUnitPrice
	}

	var id int
	err := tx.QueryRow(ctx, `
		INSERT INTO inventory_items (business_id, catalog_item_id, supplier_id, name, unit, count_step, current_stock, cost_per_unit)
		VALUES ($1, NULL, $2, $3, $4, $5, 0, $6)
		RETURNING id`,
		sess.BusinessID, sess.SupplierID, name, unit, step, price,
	).Scan(&id)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("create inventory item %q: %w", name, err)
	}
	return id, step, nil
}

// settleOrderTx closes, splits, or marks the linked order partially received
// based on what was actually counted.
func (c *ReceiptCommitter) settleOrderTx(ctx context.Context, tx pgx.Tx, sess *ReconciliationSession, mode ConfirmMode, actualByItem map[int]decimal.Decimal) (*int, error) {
	po, err := c.orders.GetOrderForUpdateTx(ctx, tx, sess.BusinessID, *sess.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	if po.Status == OrderStatusClosed || po.Status == OrderStatusCancelled {
		return nil, fmt.Errorf("purchase order %d is already %s", po.ID, po.Status)
	}

	fullyReceived := true
	var shortfalls []PurchaseOrderLineInput
	for _, l := range po.Lines {
		actual := actualByItem[l.InventoryItemID]
		if actual.LessThan(l.OrderedQty) {
			fullyReceived = false
			if shortfall := l.OrderedQty.Sub(actual); shortfall.IsPositive() {
				shortfalls = append(shortfalls, PurchaseOrderLineInput{
					InventoryItemID: l.InventoryItemID,
					OrderedQty:      shortfall,
				})
			}
		}
	}

	switch {
	case fullyReceived || mode == ConfirmComplete:
		return nil, c.orders.SetStatusTx(ctx, tx, po.ID, OrderStatusClosed)
	case mode == ConfirmSplit:
		var newOrderID *int
		if len(shortfalls) > 0 {
			id, err := c.orders.CreateBackorderTx(ctx, tx, sess.BusinessID, po.SupplierID,
				shortfalls, fmt.Sprintf("backorder of purchase order %d", po.ID))
			if err != nil {
				return nil, err
			}
			newOrderID = &id
		}
		if err := c.orders.SetStatusTx(ctx, tx, po.ID, OrderStatusClosed); err != nil {
			return nil, err
		}
		return newOrderID, nil
	default:
		return nil, c.orders.SetStatusTx(ctx, tx, po.ID, OrderStatusPartiallyReceived)
	}
}

// fail wraps a mid-commit error, logging the session id and the line ids
// whose increments were in flight. The surrounding transaction rolls back,
// but the log trail must survive for manual follow-up either way.
func (c *ReceiptCommitter) fail(sess *ReconciliationSession, applied []int, err error) error {
	log.Printf("receipt commit failed: session=%s applied_lines=%v err=%v", sess.ID, applied, err)
	return &CommitPartialFailure{SessionID: sess.ID, AppliedLineIDs: applied, Err: err}
}
