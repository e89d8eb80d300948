package core_test

import (
	"errors"
	"testing"
	"time"

	"receiving-engine/internal/core"
)

func newTestSession(id, operator string) *core.ReconciliationSession {
	now := time.Now()
	return &core.ReconciliationSession{
		ID:          id,
		BusinessID:  1,
		OperatorKey: operator,
		State:       core.SessionOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSessionStore_PutGetRemove(t *testing.T) {
	store := core.NewSessionStore()

	sess := newTestSession("s1", "op-a")
	if err := store.Put(sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get("s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "s1" {
		t.Errorf("got session %s, want s1", got.ID)
	}

	if _, err := store.Get("missing"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("Get(missing) = %v, want ErrSessionNotFound", err)
	}

	store.Remove("s1")
	if _, err := store.Get("s1"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("Get after Remove = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_OneOpenPerOperator(t *testing.T) {
	store := core.NewSessionStore()

	if err := store.Put(newTestSession("s1", "op-a")); err != nil {
		t.Fatalf("Put s1: %v", err)
	}
	if err := store.Put(newTestSession("s2", "op-a")); !errors.Is(err, core.ErrOpenSessionExists) {
		t.Errorf("second open for op-a = %v, want ErrOpenSessionExists", err)
	}

	// A different operator is unaffected.
	if err := store.Put(newTestSession("s3", "op-b")); err != nil {
		t.Errorf("Put for op-b: %v", err)
	}

	// After the first session ends the operator can open again.
	store.Remove("s1")
	if err := store.Put(newTestSession("s4", "op-a")); err != nil {
		t.Errorf("Put after Remove: %v", err)
	}
}

func TestSessionStore_ExpiredSessionEvicted(t *testing.T) {
	store := core.NewSessionStore()

	stale := newTestSession("s1", "op-a")
	stale.UpdatedAt = time.Now().Add(-5 * time.Hour)
	if err := store.Put(stale); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := store.Get("s1"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("expired Get = %v, want ErrSessionNotFound", err)
	}

	// The stale session no longer blocks the operator.
	if err := store.Put(newTestSession("s2", "op-a")); err != nil {
		t.Errorf("Put after expiry: %v", err)
	}
}
