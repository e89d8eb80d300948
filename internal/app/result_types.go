package app

import "receiving-engine/internal/core"

type SessionResult struct {
	Session *core.ReconciliationSession `json:"session"`
}

type ConfirmResult struct {
	Result *core.CommitResult `json:"result"`
}

type SearchResult struct {
	Candidates []core.MatchCandidate `json:"candidates"`
}

type StockResult struct {
	Items []core.InventoryItem `json:"items"`
}

type SuppliersResult struct {
	Suppliers []core.Supplier `json:"suppliers"`
}

type SupplierResult struct {
	Supplier *core.Supplier `json:"supplier"`
}

type PurchaseOrdersResult struct {
	Orders []core.PurchaseOrder `json:"orders"`
}

type PurchaseOrderResult struct {
	Order *core.PurchaseOrder `json:"order"`
}
