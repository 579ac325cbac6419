package journal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"hooliganhorde/core/rewards"
	"hooliganhorde/native/silo"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	j, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func testPlan(t *testing.T) silo.Plan {
	t.Helper()
	token := silo.Token{Symbol: "HOOLIGAN", Decimals: 6, ProspectsPerBDV: rewards.NewRatio(2, 1)}
	ledger := silo.NewLedger(common.HexToAddress("0xa1"), token, nil)
	for _, g := range []uint64{1, 2} {
		if _, err := ledger.Deposit(g, big.NewInt(10), big.NewInt(10)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	plan, err := silo.NewPlanner(nil).Plan(ledger, big.NewInt(15), 3)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return plan
}

func TestRecordAndGet(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	plan := testPlan(t)
	record, err := j.Record(ctx, plan)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	loaded, err := j.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != StatusPending || loaded.Target != "15" || loaded.Token != "HOOLIGAN" {
		t.Fatalf("unexpected record: %+v", loaded)
	}
	decoded, err := loaded.Plan()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Digest != plan.Digest || len(decoded.Entries) != 2 || decoded.Entries[1].Amount.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("plan did not survive the journal: %+v", decoded)
	}
}

func TestTransitions(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	record, err := j.Record(ctx, testPlan(t))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.MarkApplied(ctx, record.ID); err != nil {
		t.Fatalf("mark applied: %v", err)
	}
	if err := j.MarkApplied(ctx, record.ID); err == nil {
		t.Fatalf("expected second application to be rejected")
	}
	if err := j.MarkStale(ctx, record.ID); err == nil {
		t.Fatalf("applied plan cannot become stale")
	}
	loaded, err := j.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != StatusApplied || loaded.AppliedAt == nil {
		t.Fatalf("unexpected record: %+v", loaded)
	}
}

func TestGetUnknown(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := j.Record(ctx, testPlan(t)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	records, err := j.List(ctx, common.HexToAddress("0xa1").Hex(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestOpenRejectsDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
