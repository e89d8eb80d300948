package app

import (
	"context"
)

// ApplicationService is the single interface all adapters call. It decouples
// presentation from the receiving engine; implementations contain no display
// logic of any kind.
type ApplicationService interface {
	// OpenSession opens a reconciliation session from already-extracted OCR
	// output, optionally linked to a purchase order.
	OpenSession(ctx context.Context, req OpenSessionRequest) (*SessionResult, error)

	// OpenSessionFromImage runs the document extractor on an invoice photo
	// and opens a session from the result.
	OpenSessionFromImage(ctx context.Context, req OpenScanRequest) (*SessionResult, error)

	// GetSession returns an open session by id.
	GetSession(ctx context.Context, sessionID string) (*SessionResult, error)

	// EditLine updates a line's counted quantity.
	EditLine(ctx context.Context, req EditLineRequest) (*SessionResult, error)

	// RemapLine re-points a line at a different catalog item, or unmaps it
	// (nil catalog item) to force new-item creation on commit.
	RemapLine(ctx context.Context, req RemapLineRequest) (*SessionResult, error)

	// ConfirmSession commits the session: stock increments, alias learning,
	// and order closure or backorder creation.
	ConfirmSession(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error)

	// DiscardSession drops a session with no persisted side effects.
	DiscardSession(ctx context.Context, sessionID string) error

	// SearchCatalog ranks catalog candidates for an operator's free-text
	// query, with no minimum score cutoff.
	SearchCatalog(ctx context.Context, businessID int, query string) (*SearchResult, error)

	// GetStockLevels returns a business's current inventory.
	GetStockLevels(ctx context.Context, businessID int) (*StockResult, error)

	ListSuppliers(ctx context.Context, businessID int) (*SuppliersResult, error)
	CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*SupplierResult, error)

	ListPurchaseOrders(ctx context.Context, businessID int, status string) (*PurchaseOrdersResult, error)
	GetPurchaseOrder(ctx context.Context, businessID, orderID int) (*PurchaseOrderResult, error)
	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error)
}
