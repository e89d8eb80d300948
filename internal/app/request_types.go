package app

import (
	"github.com/shopspring/decimal"

	"receiving-engine/internal/core"
)

// OpenSessionRequest opens a session from pre-extracted OCR output.
type OpenSessionRequest struct {
	BusinessID    int                     `json:"business_id"`
	OperatorKey   string                  `json:"operator_key"`
	Extraction    core.DocumentExtraction `json:"extraction"`
	LinkedOrderID *int                    `json:"linked_order_id,omitempty"`
	SupplierID    *int                    `json:"supplier_id,omitempty"`
}

// OpenScanRequest opens a session from a raw invoice photo.
type OpenScanRequest struct {
	BusinessID    int    `json:"business_id"`
	OperatorKey   string `json:"operator_key"`
	MimeType      string `json:"mime_type"`
	Image         []byte `json:"image"`
	LinkedOrderID *int   `json:"linked_order_id,omitempty"`
	SupplierID    *int   `json:"supplier_id,omitempty"`
}

type EditLineRequest struct {
	SessionID string           `json:"session_id"`
	LineID    int              `json:"line_id"`
	ActualQty *decimal.Decimal `json:"actual_qty,omitempty"`
}

type RemapLineRequest struct {
	SessionID     string `json:"session_id"`
	LineID        int    `json:"line_id"`
	CatalogItemID *int   `json:"catalog_item_id,omitempty"` // nil unmaps
}

// ConfirmRequest commits a session. Mode is "complete", "split", or empty
// (close only when fully received, otherwise mark partially received).
// IdempotencyKey guards client retries; one is generated when absent.
type ConfirmRequest struct {
	SessionID      string `json:"session_id"`
	Mode           string `json:"mode"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type CreateSupplierRequest struct {
	BusinessID int     `json:"business_id"`
	Name       string  `json:"name"`
	Phone      *string `json:"phone,omitempty"`
}

type CreatePurchaseOrderRequest struct {
	BusinessID int                      `json:"business_id"`
	SupplierID *int                     `json:"supplier_id,omitempty"`
	Notes      string                   `json:"notes,omitempty"`
	Lines      []PurchaseOrderLineInput `json:"lines"`
}

type PurchaseOrderLineInput struct {
	InventoryItemID int             `json:"inventory_item_id"`
	OrderedQty      decimal.Decimal `json:"ordered_qty"`
}
