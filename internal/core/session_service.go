package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenSessionInput is everything needed to open a reconciliation session
// from one scanned document.
type OpenSessionInput struct {
	BusinessID    int
	OperatorKey   string
	Extraction    DocumentExtraction
	LinkedOrderID *int
	// SupplierID overrides supplier resolution when the operator picked one
	// explicitly in the UI.
	SupplierID *int
}

// LinePatch is an operator edit to a single line. Only the counted quantity
// is editable; remapping goes through RemapLine.
type LinePatch struct {
	ActualQty *decimal.Decimal
}

// SessionService drives the reconciliation session lifecycle:
// open -> edited (loop) -> confirmed | discarded.
type SessionService interface {
	Open(ctx context.Context, input OpenSessionInput) (*ReconciliationSession, error)
	Get(ctx context.Context, sessionID string) (*ReconciliationSession, error)
	EditLine(ctx context.Context, sessionID string, lineID int, patch LinePatch) (*ReconciliationSession, error)
	RemapLine(ctx context.Context, sessionID string, lineID int, catalogItemID *int) (*ReconciliationSession, error)
	Confirm(ctx context.Context, sessionID string, mode ConfirmMode, idempotencyKey string) (*CommitResult, error)
	Discard(ctx context.Context, sessionID string) error
	// SearchCatalog is the operator's free-text override search: no minimum
	// score, so even weak candidates are offered for manual disambiguation.
	SearchCatalog(ctx context.Context, businessID int, query string) ([]MatchCandidate, error)
}

type sessionService struct {
	store     *SessionStore
	catalog   CatalogService
	aliases   AliasService
	suppliers SupplierService
	orders    PurchaseOrderService
	committer *ReceiptCommitter
}

// NewSessionService wires the session state machine to its collaborators.
func NewSessionService(store *SessionStore, catalog CatalogService, aliases AliasService,
	suppliers SupplierService, orders PurchaseOrderService, committer *ReceiptCommitter) SessionService {
	return &sessionService{
		store:     store,
		catalog:   catalog,
		aliases:   aliases,
		suppliers: suppliers,
		orders:    orders,
		committer: committer,
	}
}

func (s *sessionService) Open(ctx context.Context, input OpenSessionInput) (*ReconciliationSession, error) {
	ext := input.Extraction
	if len(ext.Items) == 0 {
		return nil, &InputError{Reason: "scan produced no line items"}
	}
	docType := ext.DocumentType
	if docType == "" {
		docType = "invoice"
	}

	// Alias and supplier data degrade to empty on failure; matching falls
	// back to fuzzy-only rather than blocking the session.
	aliases, err := s.aliases.LoadAliases(ctx)
	if err != nil {
		log.Printf("alias load failed, matching degrades to fuzzy-only: %v", err)
		aliases = nil
	}
	knownSuppliers, err := s.suppliers.ListSuppliers(ctx, input.BusinessID)
	if err != nil {
		log.Printf("supplier list failed, session stays unlinked: %v", err)
		knownSuppliers = nil
	}

	candidates, err := s.catalog.LoadCandidates(ctx, input.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("load match candidates: %w", err)
	}

	now := time.Now()
	sess := &ReconciliationSession{
		ID:             uuid.NewString(),
		BusinessID:     input.BusinessID,
		OperatorKey:    input.OperatorKey,
		DocumentType:   docType,
		DocumentNumber: ext.InvoiceNum,
		DocumentDate:   ext.InvoiceDate,
		TotalInvoiced:  ext.TotalAmount,
		State:          SessionOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var linkedOrder *PurchaseOrder
	if input.LinkedOrderID != nil {
		linkedOrder, err = s.orders.GetOrder(ctx, input.BusinessID, *input.LinkedOrderID)
		if err != nil {
			return nil, err
		}
		sess.PurchaseOrderID = &linkedOrder.ID
		sess.SupplierID = linkedOrder.SupplierID
	}

	s.resolveSupplier(sess, input, knownSuppliers)

	for i, item := range ext.Items {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		line := buildLine(i+1, item, candidates, aliases)
		sess.Lines = append(sess.Lines, line)
	}
	if len(sess.Lines) == 0 {
		return nil, &InputError{Reason: "scan produced no usable line items"}
	}

	if linkedOrder != nil {
		alignToOrder(sess, linkedOrder)
	}

	if err := s.store.Put(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// resolveSupplier fills the session's supplier from, in priority order: the
// operator's explicit choice, the linked order, or fuzzy resolution of the
// OCR'd name. Resolution failure is not an error; the session stays
// unlinked and the raw OCR name is kept for alias bookkeeping.
func (s *sessionService) resolveSupplier(sess *ReconciliationSession, input OpenSessionInput, known []Supplier) {
	if input.SupplierID != nil {
		sess.SupplierID = input.SupplierID
		for _, sup := range known {
			if sup.ID == *input.SupplierID {
				sess.SupplierName = sup.Name
				return
			}
		}
		return
	}
	if sess.SupplierID != nil {
		for _, sup := range known {
			if sup.ID == *sess.SupplierID {
				sess.SupplierName = sup.Name
			}
		}
		return
	}
	if input.Extraction.SupplierName == nil {
		return
	}
	raw := *input.Extraction.SupplierName
	if resolved := ResolveSupplier(raw, known); resolved != nil {
		sess.SupplierID = &resolved.ID
		sess.SupplierName = resolved.Name
		return
	}
	sess.SupplierName = raw
}

// buildLine runs the matcher for one extracted item and pre-fills the line
// from the top candidate.
func buildLine(id int, item ExtractedItem, candidates []CatalogCandidate, aliases []SupplierAlias) ReceiptLine {
	unit := ""
	if item.Unit != nil {
		unit = *item.Unit
	}

	line := ReceiptLine{
		ID:                 id,
		SourceText:         item.Name,
		ExtractedQty:       item.Quantity,
		ExtractedUnit:      unit,
		ExtractedUnitPrice: item.Price,
		MatchStrategy:      StrategyNone,
		Unit:               unit,
		CountStep:          decimal.NewFromInt(1),
	}
	if item.Price != nil {
		line.UnitPrice = *item.Price
	}

	matches := MatchCatalog(item.Name, candidates, aliases, MatchOptions{MinScore: MinScoreAuto})
	if len(matches) == 0 {
		line.IsNewItem = true
		line.ActualQty = defaultActualQty(item, nil)
		return line
	}

	top := matches[0]
	line.Candidates = matches
	line.MatchStrategy = top.Strategy
	line.MatchedName = top.Candidate.Name
	line.Unit = top.Candidate.Unit
	line.CountStep = top.Candidate.CountStep
	if line.UnitPrice.IsZero() {
		line.UnitPrice = top.Candidate.CostPerUnit
	}
	if top.Candidate.CatalogItemID != 0 {
		catID := top.Candidate.CatalogItemID
		line.MatchedCatalogID = &catID
	}
	line.MatchedInventoryID = top.Candidate.InventoryItemID
	line.ActualQty = defaultActualQty(item, &top.Candidate)
	return line
}

// defaultActualQty converts the invoiced quantity onto the matched item's
// stock axis: grams for measured items, plain count otherwise. When the
// invoice counts packs of a measured item, one pack is one count step.
func defaultActualQty(item ExtractedItem, matched *CatalogCandidate) decimal.Decimal {
	unit := ""
	if item.Unit != nil {
		unit = *item.Unit
	}
	cu := NormalizeUnit(unit)
	if cu.Kind == UnitMeasured {
		return cu.Canonical(item.Quantity)
	}
	if matched != nil && NormalizeUnit(matched.Unit).Kind == UnitMeasured && matched.CountStep.IsPositive() {
		return item.Quantity.Mul(matched.CountStep)
	}
	return item.Quantity
}

// alignToOrder fills OrderedQty on invoice lines from the linked order and
// appends synthetic missing-from-invoice lines for order lines the supplier
// did not deliver paperwork for, so every ordered unit is accounted for.
func alignToOrder(sess *ReconciliationSession, po *PurchaseOrder) {
	nextID := 0
	for _, l := range sess.Lines {
		if l.ID > nextID {
			nextID = l.ID
		}
	}

	covered := make(map[int]bool, len(po.Lines))
	for _, ol := range po.Lines {
		idx := findSessionLine(sess, ol)
		if idx < 0 {
			continue
		}
		ordered := ol.OrderedQty
		sess.Lines[idx].OrderedQty = &ordered
		if sess.Lines[idx].MatchedInventoryID == nil {
			itemID := ol.InventoryItemID
			sess.Lines[idx].MatchedInventoryID = &itemID
			sess.Lines[idx].IsNewItem = false
		}
		covered[ol.ID] = true
	}

	for _, ol := range po.Lines {
		if covered[ol.ID] {
			continue
		}
		nextID++
		ordered := ol.OrderedQty
		itemID := ol.InventoryItemID
		sess.Lines = append(sess.Lines, ReceiptLine{
			ID:                 nextID,
			SourceText:         ol.ItemName,
			MatchedName:        ol.ItemName,
			ExtractedQty:       decimal.Zero,
			ActualQty:          decimal.Zero,
			OrderedQty:         &ordered,
			MatchedInventoryID: &itemID,
			MatchStrategy:      StrategyNone,
			CountStep:          decimal.NewFromInt(1),
			MissingFromInvoice: true,
		})
	}
}

// findSessionLine pairs an order line with an invoice line by resolved item
// id first, then by name containment.
func findSessionLine(sess *ReconciliationSession, ol PurchaseOrderLine) int {
	for i, l := range sess.Lines {
		if l.MissingFromInvoice || l.OrderedQty != nil {
			continue
		}
		if l.MatchedInventoryID != nil && *l.MatchedInventoryID == ol.InventoryItemID {
			return i
		}
	}
	olName := strings.ToLower(strings.TrimSpace(ol.ItemName))
	for i, l := range sess.Lines {
		if l.MissingFromInvoice || l.OrderedQty != nil {
			continue
		}
		src := strings.ToLower(strings.TrimSpace(l.SourceText))
		if olName != "" && src != "" &&
			(strings.Contains(src, olName) || strings.Contains(olName, src)) {
			return i
		}
	}
	return -1
}

func (s *sessionService) Get(_ context.Context, sessionID string) (*ReconciliationSession, error) {
	return s.store.Get(sessionID)
}

func (s *sessionService) EditLine(_ context.Context, sessionID string, lineID int, patch LinePatch) (*ReconciliationSession, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("session %s is %s", sessionID, sess.State)
	}
	line := sess.Line(lineID)
	if line == nil {
		return nil, fmt.Errorf("line %d not found in session %s", lineID, sessionID)
	}

	if patch.ActualQty != nil {
		if patch.ActualQty.IsNegative() {
			return nil, fmt.Errorf("counted quantity must not be negative")
		}
		// No cascading recompute: the operator's count stands as entered.
		line.ActualQty = *patch.ActualQty
	}

	sess.State = SessionEdited
	sess.UpdatedAt = time.Now()
	return sess, nil
}

func (s *sessionService) RemapLine(ctx context.Context, sessionID string, lineID int, catalogItemID *int) (*ReconciliationSession, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("session %s is %s", sessionID, sess.State)
	}
	line := sess.Line(lineID)
	if line == nil {
		return nil, fmt.Errorf("line %d not found in session %s", lineID, sessionID)
	}

	if catalogItemID == nil {
		// Unmap: the line will create a brand-new inventory item at commit.
		line.MatchedCatalogID = nil
		line.MatchedInventoryID = nil
		line.MatchedName = ""
		line.MatchStrategy = StrategyNone
		line.IsNewItem = true
	} else {
		item, err := s.catalog.GetCatalogItem(ctx, *catalogItemID)
		if err != nil {
			return nil, err
		}
		line.MatchedCatalogID = &item.ID
		line.MatchedInventoryID = nil
		line.MatchedName = item.Name
		line.Unit = item.Unit
		line.CountStep = item.CountStep
		line.UnitPrice = item.DefaultCostPerUnit
		line.MatchStrategy = StrategyManual
		line.IsNewItem = false

		if inv, err := s.findInventoryByCatalog(ctx, sess.BusinessID, item.ID); err == nil && inv != nil {
			line.MatchedInventoryID = &inv.ID
			line.UnitPrice = inv.CostPerUnit
		}
	}

	sess.State = SessionEdited
	sess.UpdatedAt = time.Now()
	return sess, nil
}

// findInventoryByCatalog locates the business's inventory record for a
// catalog item, if any, via the candidate view.
func (s *sessionService) findInventoryByCatalog(ctx context.Context, businessID, catalogItemID int) (*InventoryItem, error) {
	candidates, err := s.catalog.LoadCandidates(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.CatalogItemID == catalogItemID && c.InventoryItemID != nil {
			return s.catalog.GetInventoryItem(ctx, businessID, *c.InventoryItemID)
		}
	}
	return nil, nil
}

func (s *sessionService) Confirm(ctx context.Context, sessionID string, mode ConfirmMode, idempotencyKey string) (*CommitResult, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("session %s is %s", sessionID, sess.State)
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	result, err := s.committer.Commit(ctx, sess, mode, idempotencyKey)
	if err != nil {
		return nil, err
	}

	sess.State = SessionConfirmed
	s.store.Remove(sessionID)
	return result, nil
}

func (s *sessionService) Discard(_ context.Context, sessionID string) error {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return err
	}
	sess.State = SessionDiscarded
	s.store.Remove(sessionID)
	return nil
}

func (s *sessionService) SearchCatalog(ctx context.Context, businessID int, query string) ([]MatchCandidate, error) {
	candidates, err := s.catalog.LoadCandidates(ctx, businessID)
	if err != nil {
		return nil, err
	}
	aliases, err := s.aliases.LoadAliases(ctx)
	if err != nil {
		log.Printf("alias load failed during search: %v", err)
		aliases = nil
	}
	return MatchCatalog(query, candidates, aliases, MatchOptions{MinScore: MinScoreSearch}), nil
}
