package app

import (
	"context"
	"fmt"

	"receiving-engine/internal/ai"
	"receiving-engine/internal/core"
)

type appService struct {
	sessions  core.SessionService
	catalog   core.CatalogService
	suppliers core.SupplierService
	orders    core.PurchaseOrderService
	extractor ai.DocumentExtractor
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	sessions core.SessionService,
	catalog core.CatalogService,
	suppliers core.SupplierService,
	orders core.PurchaseOrderService,
	extractor ai.DocumentExtractor,
) ApplicationService {
	return &appService{
		sessions:  sessions,
		catalog:   catalog,
		suppliers: suppliers,
		orders:    orders,
		extractor: extractor,
	}
}

func (s *appService) OpenSession(ctx context.Context, req OpenSessionRequest) (*SessionResult, error) {
	if req.BusinessID == 0 || req.OperatorKey == "" {
		return nil, fmt.Errorf("business id and operator key are required")
	}
	sess, err := s.sessions.Open(ctx, core.OpenSessionInput{
		BusinessID:    req.BusinessID,
		OperatorKey:   req.OperatorKey,
		Extraction:    req.Extraction,
		LinkedOrderID: req.LinkedOrderID,
		SupplierID:    req.SupplierID,
	})
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: sess}, nil
}

func (s *appService) OpenSessionFromImage(ctx context.Context, req OpenScanRequest) (*SessionResult, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("document extraction is not configured")
	}
	extraction, err := s.extractor.ExtractDocument(ctx, req.MimeType, req.Image)
	if err != nil {
		return nil, fmt.Errorf("extract document: %w", err)
	}
	return s.OpenSession(ctx, OpenSessionRequest{
		BusinessID:    req.BusinessID,
		OperatorKey:   req.OperatorKey,
		Extraction:    *extraction,
		LinkedOrderID: req.LinkedOrderID,
		SupplierID:    req.SupplierID,
	})
}

func (s *appService) GetSession(ctx context.Context, sessionID string) (*SessionResult, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: sess}, nil
}

func (s *appService) EditLine(ctx context.Context, req EditLineRequest) (*SessionResult, error) {
	sess, err := s.sessions.EditLine(ctx, req.SessionID, req.LineID, core.LinePatch{ActualQty: req.ActualQty})
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: sess}, nil
}

func (s *appService) RemapLine(ctx context.Context, req RemapLineRequest) (*SessionResult, error) {
	sess, err := s.sessions.RemapLine(ctx, req.SessionID, req.LineID, req.CatalogItemID)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: sess}, nil
}

func (s *appService) ConfirmSession(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	mode := core.ConfirmMode(req.Mode)
	switch mode {
	case core.ConfirmComplete, core.ConfirmSplit, "":
	default:
		return nil, fmt.Errorf("invalid confirm mode %q", req.Mode)
	}
	result, err := s.sessions.Confirm(ctx, req.SessionID, mode, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Result: result}, nil
}

func (s *appService) DiscardSession(ctx context.Context, sessionID string) error {
	return s.sessions.Discard(ctx, sessionID)
}

func (s *appService) SearchCatalog(ctx context.Context, businessID int, query string) (*SearchResult, error) {
	candidates, err := s.sessions.SearchCatalog(ctx, businessID, query)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Candidates: candidates}, nil
}

func (s *appService) GetStockLevels(ctx context.Context, businessID int) (*StockResult, error) {
	items, err := s.catalog.ListStock(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return &StockResult{Items: items}, nil
}

func (s *appService) ListSuppliers(ctx context.Context, businessID int) (*SuppliersResult, error) {
	suppliers, err := s.suppliers.ListSuppliers(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return &SuppliersResult{Suppliers: suppliers}, nil
}

func (s *appService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*SupplierResult, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("supplier name is required")
	}
	sup, err := s.suppliers.CreateSupplier(ctx, req.BusinessID, req.Name, req.Phone)
	if err != nil {
		return nil, err
	}
	return &SupplierResult{Supplier: sup}, nil
}

func (s *appService) ListPurchaseOrders(ctx context.Context, businessID int, status string) (*PurchaseOrdersResult, error) {
	orders, err := s.orders.ListOrders(ctx, businessID, core.PurchaseOrderStatus(status))
	if err != nil {
		return nil, err
	}
	return &PurchaseOrdersResult{Orders: orders}, nil
}

func (s *appService) GetPurchaseOrder(ctx context.Context, businessID, orderID int) (*PurchaseOrderResult, error) {
	order, err := s.orders.GetOrder(ctx, businessID, orderID)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{Order: order}, nil
}

func (s *appService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error) {
	lines := make([]core.PurchaseOrderLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, core.PurchaseOrderLineInput{
			InventoryItemID: l.InventoryItemID,
			OrderedQty:      l.OrderedQty,
		})
	}
	order, err := s.orders.CreateOrder(ctx, req.BusinessID, req.SupplierID, lines, req.Notes)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{Order: order}, nil
}
