package core_test

import (
	"context"
	"os"
	"testing"
	"time"

	"receiving-engine/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE receipt_commits, purchase_order_lines, purchase_orders,
			supplier_aliases, inventory_items, catalog_items, suppliers, businesses
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	return pool
}

type receivingFixture struct {
	businessID   int
	supplierID   int
	coffeeCat    int // catalog item, countable, step 1
	tomatoesCat  int // catalog item, measured, 5 kg crate
	coffeeInv    int // inventory record for the coffee item
	tomatoesInv  int // inventory record for the tomato crates, step 500 g
}

func seedReceiving(t *testing.T, pool *pgxpool.Pool) receivingFixture {
	t.Helper()
	ctx := context.Background()
	var f receivingFixture

	err := pool.QueryRow(ctx,
		"INSERT INTO businesses (name) VALUES ('Test Kitchen') RETURNING id",
	).Scan(&f.businessID)
	if err != nil {
		t.Fatalf("seed business: %v", err)
	}

	err = pool.QueryRow(ctx,
		"INSERT INTO suppliers (business_id, name) VALUES ($1, 'ברכת האדמה') RETURNING id",
		f.businessID,
	).Scan(&f.supplierID)
	if err != nil {
		t.Fatalf("seed supplier: %v", err)
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO catalog_items (name, unit, default_cost_per_unit, count_step)
		VALUES ('קפה שחור', 'unit', 12, 1) RETURNING id`,
	).Scan(&f.coffeeCat)
	if err != nil {
		t.Fatalf("seed coffee catalog item: %v", err)
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO catalog_items (name, unit, default_cost_per_unit, count_step)
		VALUES ('עגבניות', 'קילו', 20, 5000) RETURNING id`,
	).Scan(&f.tomatoesCat)
	if err != nil {
		t.Fatalf("seed tomato catalog item: %v", err)
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO inventory_items (business_id, catalog_item_id, supplier_id, name, unit, count_step, current_stock, cost_per_unit)
		VALUES ($1, $2, $3, 'קפה שחור', 'unit', 1, 0, 12) RETURNING id`,
		f.businessID, f.coffeeCat, f.supplierID,
	).Scan(&f.coffeeInv)
	if err != nil {
		t.Fatalf("seed coffee inventory: %v", err)
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO inventory_items (business_id, catalog_item_id, supplier_id, name, unit, count_step, current_stock, cost_per_unit)
		VALUES ($1, $2, $3, 'עגבניות', 'קילו', 500, 0, 20) RETURNING id`,
		f.businessID, f.tomatoesCat, f.supplierID,
	).Scan(&f.tomatoesInv)
	if err != nil {
		t.Fatalf("seed tomato inventory: %v", err)
	}

	return f
}

func currentStock(t *testing.T, pool *pgxpool.Pool, itemID int) decimal.Decimal {
	t.Helper()
	var stock decimal.Decimal
	err := pool.QueryRow(context.Background(),
		"SELECT current_stock FROM inventory_items WHERE id = $1", itemID,
	).Scan(&stock)
	if err != nil {
		t.Fatalf("read stock for item %d: %v", itemID, err)
	}
	return stock
}

func newTestCommitSession(f receivingFixture, lines ...core.ReceiptLine) *core.ReconciliationSession {
	now := time.Now()
	return &core.ReconciliationSession{
		ID:           "test-session",
		BusinessID:   f.businessID,
		OperatorKey:  "op",
		SupplierID:   &f.supplierID,
		SupplierName: "ברכת האדמה",
		DocumentType: "invoice",
		State:        core.SessionOpen,
		Lines:        lines,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAliasService_RecordMonotonic(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	f := seedReceiving(t, pool)

	ctx := context.Background()
	svc := core.NewAliasService(pool)

	for i := 0; i < 3; i++ {
		if err := svc.Record(ctx, f.coffeeCat, "קפה טורקי טחון", "ברכת האדמה"); err != nil {
			t.Fatalf("Record #%d: %v", i+1, err)
		}
	}
	if err := svc.Record(ctx, f.coffeeCat, "קפה נמס", "ברכת האדמה"); err != nil {
		t.Fatalf("Record second phrasing: %v", err)
	}

	aliases, err := svc.LoadAliases(ctx)
	if err != nil {
		t.Fatalf("LoadAliases: %v", err)
	}
	if len(aliases) != 2 {
		t.Fatalf("got %d aliases, want 2", len(aliases))
	}
	// Ordered by occurrence count descending.
	if aliases[0].LineText != "קפה טורקי טחון" || aliases[0].OccurrenceCount != 3 {
		t.Errorf("top alias = %q x%d, want קפה טורקי טחון x3",
			aliases[0].LineText, aliases[0].OccurrenceCount)
	}
	if aliases[1].OccurrenceCount != 1 {
		t.Errorf("second alias count = %d, want 1", aliases[1].OccurrenceCount)
	}
}

func TestReceiptCommitter_SplitShortReceipt(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	f := seedReceiving(t, pool)

	ctx := context.Background()
	orders := core.NewPurchaseOrderService(pool)
	committer := core.NewReceiptCommitter(pool, core.NewAliasService(pool), orders, nil)

	po, err := orders.CreateOrder(ctx, f.businessID, &f.supplierID, []core.PurchaseOrderLineInput{
		{InventoryItemID: f.coffeeInv, OrderedQty: decimal.NewFromInt(10)},
	}, "weekly coffee order")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	ordered := decimal.NewFromInt(10)
	sess := newTestCommitSession(f, core.ReceiptLine{
		ID:                 1,
		SourceText:         "קפה שחור",
		MatchedName:        "קפה שחור",
		MatchedCatalogID:   &f.coffeeCat,
		MatchedInventoryID: &f.coffeeInv,
		OrderedQty:         &ordered,
		ActualQty:          decimal.NewFromInt(6),
	})
	sess.PurchaseOrderID = &po.ID

	result, err := committer.Commit(ctx, sess, core.ConfirmSplit, "key-split-1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.ItemsProcessed != 1 {
		t.Errorf("items processed = %d, want 1", result.ItemsProcessed)
	}
	if result.NewOrderID == nil {
		t.Fatal("split commit with shortfall produced no backorder")
	}

	if stock := currentStock(t, pool, f.coffeeInv); !stock.Equal(decimal.NewFromInt(6)) {
		t.Errorf("stock = %s, want 6", stock)
	}

	closed, err := orders.GetOrder(ctx, f.businessID, po.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if closed.Status != core.OrderStatusClosed {
		t.Errorf("original order status = %s, want closed", closed.Status)
	}
	if closed.ClosedAt == nil {
		t.Error("closed order missing closed_at")
	}

	backorder, err := orders.GetOrder(ctx, f.businessID, *result.NewOrderID)
	if err != nil {
		t.Fatalf("GetOrder(backorder): %v", err)
	}
	if backorder.Status != core.OrderStatusOpen {
		t.Errorf("backorder status = %s, want open", backorder.Status)
	}
	if len(backorder.Lines) != 1 || !backorder.Lines[0].OrderedQty.Equal(decimal.NewFromInt(4)) {
		t.Errorf("backorder lines = %+v, want one line of 4", backorder.Lines)
	}

	t.Run("IdempotentReplay", func(t *testing.T) {
		replay, err := committer.Commit(ctx, sess, core.ConfirmSplit, "key-split-1")
		if err != nil {
			t.Fatalf("replay Commit: %v", err)
		}
		if replay.ItemsProcessed != result.ItemsProcessed {
			t.Errorf("replay items processed = %d, want %d", replay.ItemsProcessed, result.ItemsProcessed)
		}
		if replay.NewOrderID == nil || *replay.NewOrderID != *result.NewOrderID {
			t.Errorf("replay backorder id = %v, want %d", replay.NewOrderID, *result.NewOrderID)
		}
		// Stock must not double.
		if stock := currentStock(t, pool, f.coffeeInv); !stock.Equal(decimal.NewFromInt(6)) {
			t.Errorf("stock after replay = %s, want 6", stock)
		}
	})
}

func TestReceiptCommitter_PartialReceiptKeepsOrderOpen(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	f := seedReceiving(t, pool)

	ctx := context.Background()
	orders := core.NewPurchaseOrderService(pool)
	committer := core.NewReceiptCommitter(pool, core.NewAliasService(pool), orders, nil)

	po, err := orders.CreateOrder(ctx, f.businessID, &f.supplierID, []core.PurchaseOrderLineInput{
		{InventoryItemID: f.coffeeInv, OrderedQty: decimal.NewFromInt(10)},
	}, "")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	ordered := decimal.NewFromInt(10)
	sess := newTestCommitSession(f, core.ReceiptLine{
		ID:                 1,
		SourceText:         "קפה שחור",
		MatchedName:        "קפה שחור",
		MatchedCatalogID:   &f.coffeeCat,
		MatchedInventoryID: &f.coffeeInv,
		OrderedQty:         &ordered,
		ActualQty:          decimal.NewFromInt(6),
	})
	sess.PurchaseOrderID = &po.ID

	result, err := committer.Commit(ctx, sess, "", "key-partial-1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.NewOrderID != nil {
		t.Errorf("default mode created backorder %d", *result.NewOrderID)
	}

	got, err := orders.GetOrder(ctx, f.businessID, po.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != core.OrderStatusPartiallyReceived {
		t.Errorf("order status = %s, want partially_received", got.Status)
	}
}

func TestReceiptCommitter_QuantizesToCountStep(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	f := seedReceiving(t, pool)

	ctx := context.Background()
	committer := core.NewReceiptCommitter(pool, core.NewAliasService(pool), core.NewPurchaseOrderService(pool), nil)

	// 4700 g against a 500 g step lands on 4500 g.
	sess := newTestCommitSession(f, core.ReceiptLine{
		ID:                 1,
		SourceText:         "עגבניות",
		MatchedName:        "עגבניות",
		MatchedCatalogID:   &f.tomatoesCat,
		MatchedInventoryID: &f.tomatoesInv,
		ActualQty:          decimal.NewFromInt(4700),
	})

	if _, err := committer.Commit(ctx, sess, "", "key-quant-1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if stock := currentStock(t, pool, f.tomatoesInv); !stock.Equal(decimal.NewFromInt(4500)) {
		t.Errorf("stock = %s, want 4500", stock)
	}
}

func TestReceiptCommitter_CreatesNewItemFromLine(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	f := seedReceiving(t, pool)

	ctx := context.Background()
	committer := core.NewReceiptCommitter(pool, core.NewAliasService(pool), core.NewPurchaseOrderService(pool), nil)

	unit := "גרם"
	price := decimal.NewFromInt(9)
	sess := newTestCommitSession(f, core.ReceiptLine{
		ID:                 1,
		SourceText:         "גבינה בולגרית 500 גרם",
		ExtractedUnit:      unit,
		ExtractedUnitPrice: &price,
		IsNewItem:          true,
		ActualQty:          decimal.NewFromInt(1000),
	})

	result, err := committer.Commit(ctx, sess, "", "key-new-item-1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.ItemsProcessed != 1 {
		t.Errorf("items processed = %d, want 1", result.ItemsProcessed)
	}

	var name string
	var step, stock decimal.Decimal
	err = pool.QueryRow(ctx, `
		SELECT name, count_step, current_stock FROM inventory_items
		WHERE business_id = $1 AND catalog_item_id IS NULL`,
		f.businessID,
	).Scan(&name, &step, &stock)
	if err != nil {
		t.Fatalf("read created item: %v", err)
	}
	if name != "גבינה בולגרית" {
		t.Errorf("created name = %q, want weight hint stripped", name)
	}
	if !step.Equal(decimal.NewFromInt(500)) {
		t.Errorf("count step = %s, want 500 from the weight hint", step)
	}
	if !stock.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("stock = %s, want 1000", stock)
	}
}

func TestReceiptCommitter_LearnsAliasOnCommit(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	f := seedReceiving(t, pool)

	ctx := context.Background()
	aliases := core.NewAliasService(pool)
	committer := core.NewReceiptCommitter(pool, aliases, core.NewPurchaseOrderService(pool), nil)

	sess := newTestCommitSession(f, core.ReceiptLine{
		ID:                 1,
		SourceText:         "קפה טורקי של הבית", // supplier phrasing, not the catalog name
		MatchedName:        "קפה שחור",
		MatchedCatalogID:   &f.coffeeCat,
		MatchedInventoryID: &f.coffeeInv,
		ActualQty:          decimal.NewFromInt(2),
	})

	if _, err := committer.Commit(ctx, sess, "", "key-alias-1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	learned, err := aliases.LoadAliases(ctx)
	if err != nil {
		t.Fatalf("LoadAliases: %v", err)
	}
	if len(learned) != 1 {
		t.Fatalf("got %d aliases, want 1", len(learned))
	}
	if learned[0].LineText != "קפה טורקי של הבית" || learned[0].CatalogItemID != f.coffeeCat {
		t.Errorf("learned alias = %+v, want supplier phrasing mapped to the coffee item", learned[0])
	}

	// The learned phrasing now short-circuits the matcher.
	id, ok := core.LookupAlias("קפה טורקי של הבית", learned)
	if !ok || id != f.coffeeCat {
		t.Errorf("LookupAlias = (%d, %v), want coffee item", id, ok)
	}
}
