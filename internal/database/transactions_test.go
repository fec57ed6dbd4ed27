package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"moviemeter-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func setupTestDb(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	service := newServiceWithDB(db)
	service.setClock(func() time.Time { return testNow })

	// Use the actual schema initialization
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func TestAwardPoints_Vote(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	address := "0x1111111111111111111111111111111111111111"

	result, err := service.AwardPoints(ctx, address, store.ActionVote, "vote:"+address+":tt0111161")
	if err != nil {
		t.Fatalf("AwardPoints failed: %v", err)
	}

	if result.UserAddress != address {
		t.Errorf("Expected address %s, got %s", address, result.UserAddress)
	}
	if result.Amount != 10 {
		t.Errorf("Expected amount 10, got %d", result.Amount)
	}
	if result.BalanceBefore != 0 || result.BalanceAfter != 10 {
		t.Errorf("Expected balance 0 -> 10, got %d -> %d", result.BalanceBefore, result.BalanceAfter)
	}

	// The award registers the user
	if _, err := service.GetUser(ctx, address); err != nil {
		t.Errorf("Expected user to be registered, got: %v", err)
	}
}

func TestAwardPoints_Accumulates(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	address := "0x2222222222222222222222222222222222222222"

	awards := []struct {
		action     store.ActionType
		externalId string
	}{
		{store.ActionVote, "vote:a:m1"},
		{store.ActionShare, "share:a:s1"},
		{store.ActionLogin, "login:a:2025-03-14"},
		{store.ActionReferral, "referral:b"},
	}
	for _, a := range awards {
		if _, err := service.AwardPoints(ctx, address, a.action, a.externalId); err != nil {
			t.Fatalf("AwardPoints(%s) failed: %v", a.action, err)
		}
	}

	summary, err := service.GetPoints(ctx, address)
	if err != nil {
		t.Fatalf("GetPoints failed: %v", err)
	}
	if summary.Points != 90 {
		t.Errorf("Expected 90 points, got %d", summary.Points)
	}
	if len(summary.ClaimedRewards) != 0 {
		t.Errorf("Expected no claimed rewards, got %v", summary.ClaimedRewards)
	}

	if err := service.ReconcilePoints(ctx, address); err != nil {
		t.Errorf("ReconcilePoints failed: %v", err)
	}
}

func TestAwardPoints_DuplicateHandling(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	address := "0x3333333333333333333333333333333333333333"
	externalId := "login:" + address + ":2025-03-14"

	if _, err := service.AwardPoints(ctx, address, store.ActionLogin, externalId); err != nil {
		t.Fatalf("First AwardPoints failed: %v", err)
	}

	// Replaying the same key must not credit twice
	_, err := service.AwardPoints(ctx, address, store.ActionLogin, externalId)
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Fatalf("Expected duplicate transaction error, got: %v", err)
	}

	summary, err := service.GetPoints(ctx, address)
	if err != nil {
		t.Fatalf("GetPoints failed: %v", err)
	}
	if summary.Points != 5 {
		t.Errorf("Expected 5 points after replay, got %d", summary.Points)
	}
}

func TestAwardPoints_UnknownAction(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.AwardPoints(context.Background(), "0x4444444444444444444444444444444444444444", store.ActionType("comment"), "")
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestProcessTransaction_NegativeBalanceRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	address := "0x5555555555555555555555555555555555555555"

	_, err := service.subledger.processTransaction(ctx, ProcessTransactionParams{address, "claim", -1, "claim:x", "x"}, false)
	if !errors.Is(err, store.ErrInsufficientPoints) {
		t.Fatalf("Expected insufficient points error, got: %v", err)
	}

	// Nothing is written when the debit is rejected
	history, err := service.GetPointsHistory(ctx, address, 10, 0)
	if err != nil {
		t.Fatalf("GetPointsHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(history))
	}
}

func TestGetPointsHistory_NewestFirst(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	address := "0x6666666666666666666666666666666666666666"

	for _, id := range []string{"vote:a:m1", "vote:a:m2", "vote:a:m3"} {
		if _, err := service.AwardPoints(ctx, address, store.ActionVote, id); err != nil {
			t.Fatalf("AwardPoints failed: %v", err)
		}
	}

	history, err := service.GetPointsHistory(ctx, address, 2, 0)
	if err != nil {
		t.Fatalf("GetPointsHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(history))
	}
	if history[0].ExternalId != "vote:a:m3" || history[0].BalanceAfter != 30 {
		t.Errorf("Expected newest entry first, got %s with balance %d", history[0].ExternalId, history[0].BalanceAfter)
	}

	page, err := service.GetPointsHistory(ctx, address, 2, 2)
	if err != nil {
		t.Fatalf("GetPointsHistory failed: %v", err)
	}
	if len(page) != 1 || page[0].ExternalId != "vote:a:m1" {
		t.Errorf("Expected oldest entry on second page, got %+v", page)
	}
}
