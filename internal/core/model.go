package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Business is the tenant that owns inventory, suppliers, and purchase orders.
type Business struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Supplier is a known vendor of a business.
type Supplier struct {
	ID         int       `json:"id"`
	BusinessID int       `json:"business_id"`
	Name       string    `json:"name"`
	Phone      *string   `json:"phone,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// CatalogItem is a master-catalog product definition. Read-only for the
// receiving engine.
//
// CountStep is the stock quantization granularity: 1 for items counted in
// whole units, or the pack size in grams for weighed/measured items
// (e.g. 5000 for a 5 kg crate, 1000 for a 1 L bottle).
type CatalogItem struct {
	ID                 int             `json:"id"`
	Name               string          `json:"name"`
	Unit               string          `json:"unit"`
	DefaultCostPerUnit decimal.Decimal `json:"default_cost_per_unit"`
	CountStep          decimal.Decimal `json:"count_step"`
}

// InventoryItem is a business-owned stock record. CatalogItemID is nil for
// items created directly from invoice lines that had no catalog match.
// CurrentStock is mutated only through the receipt committer.
type InventoryItem struct {
	ID            int             `json:"id"`
	BusinessID    int             `json:"business_id"`
	CatalogItemID *int            `json:"catalog_item_id,omitempty"`
	SupplierID    *int            `json:"supplier_id,omitempty"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	CountStep     decimal.Decimal `json:"count_step"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SupplierAlias is a learned mapping from a supplier's invoice line text to a
// catalog item. Unique on (catalog_item_id, line_text); the occurrence count
// only ever grows and rows are never auto-deleted.
type SupplierAlias struct {
	ID                   int       `json:"id"`
	CatalogItemID        int       `json:"catalog_item_id"`
	LineText             string    `json:"line_text"`
	OccurrenceCount      int       `json:"occurrence_count"`
	LastSeenSupplierName string    `json:"last_seen_supplier_name"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type PurchaseOrderStatus string

const (
	OrderStatusOpen              PurchaseOrderStatus = "open"
	OrderStatusPartiallyReceived PurchaseOrderStatus = "partially_received"
	OrderStatusClosed            PurchaseOrderStatus = "closed"
	OrderStatusCancelled         PurchaseOrderStatus = "cancelled"
)

type PurchaseOrder struct {
	ID         int                 `json:"id"`
	BusinessID int                 `json:"business_id"`
	SupplierID *int                `json:"supplier_id,omitempty"`
	Status     PurchaseOrderStatus `json:"status"`
	Notes      *string             `json:"notes,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	ClosedAt   *time.Time          `json:"closed_at,omitempty"`
	Lines      []PurchaseOrderLine `json:"lines"`
}

type PurchaseOrderLine struct {
	ID              int             `json:"id"`
	OrderID         int             `json:"order_id"`
	InventoryItemID int             `json:"inventory_item_id"`
	ItemName        string          `json:"item_name"`
	OrderedQty      decimal.Decimal `json:"ordered_qty"`
}

// ExtractedItem is one line item as produced by the OCR/document-scanning
// step. Untrusted and possibly partial.
type ExtractedItem struct {
	Name     string           `json:"name"`
	Quantity decimal.Decimal  `json:"quantity"`
	Unit     *string          `json:"unit,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// DocumentExtraction is the full OCR output for one scanned document.
// Every header field is optional; only Items carries hard requirements.
type DocumentExtraction struct {
	SupplierName *string          `json:"supplier_name,omitempty"`
	InvoiceNum   *string          `json:"invoice_number,omitempty"`
	InvoiceDate  *string          `json:"invoice_date,omitempty"`
	TotalAmount  *decimal.Decimal `json:"total_amount,omitempty"`
	DocumentType string           `json:"document_type"`
	Items        []ExtractedItem  `json:"items"`
}

// CommitResult reports what a confirmed session actually applied.
type CommitResult struct {
	ItemsProcessed int  `json:"items_processed"`
	NewOrderID     *int `json:"new_order_id,omitempty"`
}
