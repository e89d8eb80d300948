package core_test

import (
	"errors"
	"testing"

	"receiving-engine/internal/core"

	"github.com/shopspring/decimal"
)

func mappedLine(id int, inventoryID int) core.ReceiptLine {
	return core.ReceiptLine{
		ID:                 id,
		SourceText:         "שורה",
		MatchedInventoryID: &inventoryID,
		ActualQty:          decimal.NewFromInt(1),
	}
}

func TestValidateForConfirm(t *testing.T) {
	t.Run("EmptySessionRejected", func(t *testing.T) {
		sess := &core.ReconciliationSession{State: core.SessionOpen}
		err := sess.ValidateForConfirm()
		var vErr *core.ConfirmValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("got %v, want ConfirmValidationError", err)
		}
	})

	t.Run("UnmappedLineRejectedWithIDs", func(t *testing.T) {
		sess := &core.ReconciliationSession{
			Lines: []core.ReceiptLine{
				mappedLine(1, 10),
				{ID: 2, SourceText: "לא מזוהה", ActualQty: decimal.NewFromInt(3)},
			},
		}
		err := sess.ValidateForConfirm()
		var vErr *core.ConfirmValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("got %v, want ConfirmValidationError", err)
		}
		if len(vErr.LineIDs) != 1 || vErr.LineIDs[0] != 2 {
			t.Errorf("offending line ids = %v, want [2]", vErr.LineIDs)
		}
	})

	t.Run("NegativeCountRejected", func(t *testing.T) {
		line := mappedLine(1, 10)
		line.ActualQty = decimal.NewFromInt(-1)
		sess := &core.ReconciliationSession{Lines: []core.ReceiptLine{line}}
		var vErr *core.ConfirmValidationError
		if err := sess.ValidateForConfirm(); !errors.As(err, &vErr) {
			t.Fatalf("got %v, want ConfirmValidationError", err)
		}
	})

	t.Run("CatalogMappedCountsAsMapped", func(t *testing.T) {
		// An inventory record may not exist yet; the commit provisions it.
		catID := 7
		sess := &core.ReconciliationSession{
			Lines: []core.ReceiptLine{{ID: 1, MatchedCatalogID: &catID, ActualQty: decimal.NewFromInt(2)}},
		}
		if err := sess.ValidateForConfirm(); err != nil {
			t.Errorf("catalog-mapped line failed validation: %v", err)
		}
	})

	t.Run("NewItemCountsAsMapped", func(t *testing.T) {
		sess := &core.ReconciliationSession{
			Lines: []core.ReceiptLine{{ID: 1, SourceText: "מוצר חדש", IsNewItem: true, ActualQty: decimal.NewFromInt(2)}},
		}
		if err := sess.ValidateForConfirm(); err != nil {
			t.Errorf("new-item line failed validation: %v", err)
		}
	})
}

func TestSessionLineAndActive(t *testing.T) {
	sess := &core.ReconciliationSession{
		State: core.SessionOpen,
		Lines: []core.ReceiptLine{mappedLine(1, 10), mappedLine(2, 11)},
	}

	if l := sess.Line(2); l == nil || l.ID != 2 {
		t.Errorf("Line(2) = %v, want line 2", l)
	}
	if l := sess.Line(99); l != nil {
		t.Errorf("Line(99) = %v, want nil", l)
	}

	for state, active := range map[core.SessionState]bool{
		core.SessionOpen:      true,
		core.SessionEdited:    true,
		core.SessionConfirmed: false,
		core.SessionDiscarded: false,
	} {
		sess.State = state
		if sess.Active() != active {
			t.Errorf("Active() in state %s = %v, want %v", state, sess.Active(), active)
		}
	}
}
