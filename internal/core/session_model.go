package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState is the reconciliation session lifecycle:
// open -> edited (self-loop) -> confirmed | discarded.
type SessionState string

const (
	SessionOpen      SessionState = "open"
	SessionEdited    SessionState = "edited"
	SessionConfirmed SessionState = "confirmed"
	SessionDiscarded SessionState = "discarded"
)

// ReceiptLine is one reconciled line within a session. Ephemeral; it exists
// only while the session is open.
//
// Three quantity streams meet here: OrderedQty (what the purchase order
// asked for, nil when the session is unlinked), ExtractedQty (what the
// supplier's invoice claims), and ActualQty (what the operator physically
// counted; this one is authoritative at commit time).
type ReceiptLine struct {
	ID                 int               `json:"id"`
	SourceText         string            `json:"source_text"`
	ExtractedQty       decimal.Decimal   `json:"extracted_qty"`
	ExtractedUnit      string            `json:"extracted_unit"`
	ExtractedUnitPrice *decimal.Decimal  `json:"extracted_unit_price,omitempty"`
	MatchedCatalogID   *int              `json:"matched_catalog_item_id,omitempty"`
	MatchedInventoryID *int              `json:"matched_inventory_item_id,omitempty"`
	MatchStrategy      MatchStrategy     `json:"match_strategy"`
	MatchedName        string            `json:"matched_name,omitempty"`
	Unit               string            `json:"unit"`
	CountStep          decimal.Decimal   `json:"count_step"`
	UnitPrice          decimal.Decimal   `json:"unit_price"`
	OrderedQty         *decimal.Decimal  `json:"ordered_qty,omitempty"`
	ActualQty          decimal.Decimal   `json:"actual_qty"`
	IsNewItem          bool              `json:"is_new_item"`
	MissingFromInvoice bool              `json:"missing_from_invoice"`
	Candidates         []MatchCandidate  `json:"candidates,omitempty"`
}

// ReconciliationSession is the per-invoice aggregate. Exactly one may be
// open per operator key; it is always addressed by id, never held as a
// hidden global.
type ReconciliationSession struct {
	ID              string           `json:"id"`
	BusinessID      int              `json:"business_id"`
	OperatorKey     string           `json:"operator_key"`
	SupplierID      *int             `json:"supplier_id,omitempty"`
	SupplierName    string           `json:"supplier_name,omitempty"`
	PurchaseOrderID *int             `json:"purchase_order_id,omitempty"`
	DocumentType    string           `json:"document_type"`
	DocumentNumber  *string          `json:"document_number,omitempty"`
	DocumentDate    *string          `json:"document_date,omitempty"`
	TotalInvoiced   *decimal.Decimal `json:"total_invoiced_amount,omitempty"`
	State           SessionState     `json:"state"`
	Lines           []ReceiptLine    `json:"lines"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Line returns a pointer to the line with the given id, or nil.
func (s *ReconciliationSession) Line(lineID int) *ReceiptLine {
	for i := range s.Lines {
		if s.Lines[i].ID == lineID {
			return &s.Lines[i]
		}
	}
	return nil
}

// Active reports whether the session still accepts edits.
func (s *ReconciliationSession) Active() bool {
	return s.State == SessionOpen || s.State == SessionEdited
}

// ValidateForConfirm checks the confirm preconditions: at least one line,
// and every line either mapped to an item or flagged as new. A line mapped
// to a catalog item the business does not stock yet counts as mapped; the
// committer provisions the inventory record inside its transaction.
func (s *ReconciliationSession) ValidateForConfirm() error {
	if len(s.Lines) == 0 {
		return &ConfirmValidationError{Reason: "session has no lines"}
	}
	var unmapped []int
	for _, l := range s.Lines {
		if l.MatchedInventoryID == nil && l.MatchedCatalogID == nil && !l.IsNewItem {
			unmapped = append(unmapped, l.ID)
		}
		if l.ActualQty.IsNegative() {
			return &ConfirmValidationError{Reason: "negative counted quantity", LineIDs: []int{l.ID}}
		}
	}
	if len(unmapped) > 0 {
		return &ConfirmValidationError{Reason: "lines are neither mapped nor marked as new items", LineIDs: unmapped}
	}
	return nil
}
