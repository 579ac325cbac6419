package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"hooliganhorde/core/epoch"
	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/rewards"
	"hooliganhorde/integrations/webhooks"
	nativesilo "hooliganhorde/native/silo"
	"hooliganhorde/services/silod/journal"
	statesilo "hooliganhorde/state/silo"
	"hooliganhorde/storage"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type recordingNotifier struct {
	mu       sync.Mutex
	applied  []webhooks.PlanAppliedPayload
	sunrises []webhooks.SunrisePayload
}

func (n *recordingNotifier) PlanApplied(p webhooks.PlanAppliedPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.applied = append(n.applied, p)
	return nil
}

func (n *recordingNotifier) Sunrise(p webhooks.SunrisePayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sunrises = append(n.sunrises, p)
	return nil
}

type fixture struct {
	svc      *Service
	db       storage.Database
	journal  *journal.Journal
	notifier *recordingNotifier
}

func newSilo(t *testing.T) *nativesilo.Silo {
	t.Helper()
	s, err := nativesilo.New(rewards.MustModel(rewards.DefaultParams()), []nativesilo.Token{
		{Symbol: "HOOLIGAN", Decimals: 6, ProspectsPerBDV: rewards.NewRatio(2, 1)},
		{Symbol: "HOOLIGAN3CRV", Decimals: 18, ProspectsPerBDV: rewards.NewRatio(4, 1)},
	})
	if err != nil {
		t.Fatalf("silo: %v", err)
	}
	return s
}

func newFixture(t *testing.T, cfg epoch.Config, now func() time.Time) *fixture {
	t.Helper()
	j, err := journal.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	f := &fixture{db: storage.NewMemDB(), journal: j, notifier: &recordingNotifier{}}
	f.svc = f.open(t, cfg, now)
	return f
}

func (f *fixture) open(t *testing.T, cfg epoch.Config, now func() time.Time) *Service {
	t.Helper()
	svc, err := New(Options{
		Silo:     newSilo(t),
		Store:    statesilo.NewStore(f.db),
		Epoch:    cfg,
		Journal:  f.journal,
		Notifier: f.notifier,
		Now:      now,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func (f *fixture) deposit(t *testing.T, token string, gameday uint64, amount int64) {
	t.Helper()
	if _, err := f.svc.Deposit(context.Background(), DepositRequest{
		Account: alice,
		Token:   token,
		Amount:  big.NewInt(amount),
		BDV:     big.NewInt(amount),
		Gameday: &gameday,
	}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func defaultEpoch(start uint64) epoch.Config {
	cfg := epoch.DefaultConfig()
	cfg.Start = start
	return cfg
}

func TestDepositPersistsAcrossRestart(t *testing.T) {
	f := newFixture(t, defaultEpoch(30), nil)
	f.deposit(t, "HOOLIGAN", 10, 5)
	f.deposit(t, "hooligan", 20, 5)
	if _, err := f.svc.Advance(context.Background(), 5); err != nil {
		t.Fatalf("advance: %v", err)
	}
	root, err := f.svc.StateRoot()
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	restarted := f.open(t, defaultEpoch(1), nil)
	if restarted.Gameday() != 35 {
		t.Fatalf("expected gameday 35 after restart, got %d", restarted.Gameday())
	}
	view, err := restarted.Balance(alice, "HOOLIGAN")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if len(view.Crates) != 2 || view.Totals.Amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected restored view: %+v", view)
	}
	restoredRoot, err := restarted.StateRoot()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root != restoredRoot {
		t.Fatalf("state root changed across restart")
	}
}

func TestDepositRejectsFutureGameday(t *testing.T) {
	f := newFixture(t, defaultEpoch(10), nil)
	future := uint64(11)
	_, err := f.svc.Deposit(context.Background(), DepositRequest{
		Account: alice, Token: "HOOLIGAN", Amount: big.NewInt(1), BDV: big.NewInt(1), Gameday: &future,
	})
	if !errors.Is(err, silerrors.ErrInvalidEpoch) {
		t.Fatalf("expected ErrInvalidEpoch, got %v", err)
	}
	_, err = f.svc.Deposit(context.Background(), DepositRequest{
		Account: alice, Token: "BEAN", Amount: big.NewInt(1), BDV: big.NewInt(1),
	})
	if !errors.Is(err, silerrors.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestPlanAndApply(t *testing.T) {
	f := newFixture(t, defaultEpoch(30), nil)
	f.deposit(t, "HOOLIGAN", 10, 5)
	f.deposit(t, "HOOLIGAN", 20, 5)
	f.deposit(t, "HOOLIGAN", 30, 5)
	ctx := context.Background()

	record, plan, err := f.svc.Plan(ctx, PlanRequest{Account: alice, Token: "HOOLIGAN", Target: big.NewInt(7)})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Entries) != 2 || record.Status != journal.StatusPending {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if _, removed, err := f.svc.ApplyPlan(ctx, record.ID); err != nil || len(removed) != 2 {
		t.Fatalf("apply: %v (%d removed)", err, len(removed))
	}
	view, err := f.svc.Balance(alice, "HOOLIGAN")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if view.Totals.Amount.Cmp(big.NewInt(8)) != 0 || view.Crates[0].Gameday != 20 {
		t.Fatalf("unexpected balance after apply: %+v", view)
	}
	if _, _, err := f.svc.ApplyPlan(ctx, record.ID); !errors.Is(err, silerrors.ErrStalePlan) {
		t.Fatalf("expected reapplication to be rejected, got %v", err)
	}
	if len(f.notifier.applied) != 1 || f.notifier.applied[0].Amount != "7" {
		t.Fatalf("unexpected notifications: %+v", f.notifier.applied)
	}
}

func TestApplyStalePlan(t *testing.T) {
	f := newFixture(t, defaultEpoch(30), nil)
	f.deposit(t, "HOOLIGAN", 10, 5)
	ctx := context.Background()
	record, _, err := f.svc.Plan(ctx, PlanRequest{Account: alice, Token: "HOOLIGAN", Target: big.NewInt(5)})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	f.deposit(t, "HOOLIGAN", 11, 1)
	if _, _, err := f.svc.ApplyPlan(ctx, record.ID); !errors.Is(err, silerrors.ErrStalePlan) {
		t.Fatalf("expected ErrStalePlan, got %v", err)
	}
	stored, err := f.journal.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != journal.StatusStale {
		t.Fatalf("expected stale status, got %s", stored.Status)
	}
	view, err := f.svc.Balance(alice, "HOOLIGAN")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if view.Totals.Amount.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("stale plan mutated the ledger")
	}
}

func TestPlanWithRecruit(t *testing.T) {
	f := newFixture(t, defaultEpoch(40), nil)
	f.deposit(t, "HOOLIGAN", 10, 5)
	ctx := context.Background()
	record, plan, err := f.svc.Plan(ctx, PlanRequest{
		Account: alice, Token: "HOOLIGAN", Target: big.NewInt(7), Recruit: big.NewInt(3),
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Shortfall.Sign() != 0 || plan.Recruit == nil {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if _, _, err := f.svc.ApplyPlan(ctx, record.ID); err != nil {
		t.Fatalf("apply: %v", err)
	}
	view, err := f.svc.Balance(alice, "HOOLIGAN")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if len(view.Crates) != 1 || view.Crates[0].Gameday != 40 || view.Crates[0].Amount.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("unexpected crates: %+v", view.Crates)
	}
}

func TestConvertBetweenTokens(t *testing.T) {
	f := newFixture(t, defaultEpoch(20), nil)
	f.deposit(t, "HOOLIGAN", 10, 1_000_000)
	crate, err := f.svc.Convert(context.Background(), ConvertRequest{
		Account:  alice,
		From:     "HOOLIGAN",
		To:       "HOOLIGAN3CRV",
		Gameday:  10,
		Amount:   big.NewInt(500_000),
		ToAmount: big.NewInt(400_000),
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if crate.Gameday != 20 || crate.Horde.Cmp(big.NewInt(5_010_000_000)) != 0 {
		t.Fatalf("unexpected converted crate: %+v", crate)
	}
	lp, err := f.svc.Balance(alice, "HOOLIGAN3CRV")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if lp.Totals.Amount.Cmp(big.NewInt(400_000)) != 0 || lp.Totals.Prospects.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("unexpected destination balance: %+v", lp.Totals)
	}

	restarted := f.open(t, defaultEpoch(1), nil)
	src, err := restarted.Balance(alice, "HOOLIGAN")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if src.Totals.Amount.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("convert was not persisted: %+v", src.Totals)
	}
}

func TestConvertErrors(t *testing.T) {
	f := newFixture(t, defaultEpoch(20), nil)
	ctx := context.Background()
	_, err := f.svc.Convert(ctx, ConvertRequest{Account: alice, From: "HOOLIGAN", To: "HOOLIGAN3CRV", Gameday: 1, Amount: big.NewInt(1)})
	if !errors.Is(err, silerrors.ErrCrateNotFound) {
		t.Fatalf("expected ErrCrateNotFound, got %v", err)
	}
	_, err = f.svc.Convert(ctx, ConvertRequest{Account: alice, From: "HOOLIGAN", To: "BEAN", Gameday: 1, Amount: big.NewInt(1)})
	if !errors.Is(err, silerrors.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestCatchUpFollowsWallClock(t *testing.T) {
	genesis := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := genesis.Add(90 * time.Minute)
	cfg := epoch.Config{Genesis: genesis, Length: time.Hour, Start: 1}
	f := newFixture(t, cfg, func() time.Time { return now })

	gameday, changed, err := f.svc.CatchUp(context.Background())
	if err != nil || !changed || gameday != 2 {
		t.Fatalf("catch up: gameday %d changed %v err %v", gameday, changed, err)
	}
	now = genesis.Add(5*time.Hour + time.Minute)
	gameday, changed, err = f.svc.CatchUp(context.Background())
	if err != nil || !changed || gameday != 6 {
		t.Fatalf("catch up: gameday %d changed %v err %v", gameday, changed, err)
	}
	if _, changed, _ := f.svc.CatchUp(context.Background()); changed {
		t.Fatalf("catch up without elapsed time should not change the gameday")
	}
	if len(f.notifier.sunrises) != 2 || f.notifier.sunrises[1].Skipped != 3 {
		t.Fatalf("unexpected sunrises: %+v", f.notifier.sunrises)
	}
	if !strings.HasPrefix(f.notifier.sunrises[0].StateRoot, "0x") {
		t.Fatalf("sunrise should carry the state root")
	}
}

func TestAdvanceRejectsZero(t *testing.T) {
	f := newFixture(t, defaultEpoch(1), nil)
	if _, err := f.svc.Advance(context.Background(), 0); !errors.Is(err, silerrors.ErrInvalidEpoch) {
		t.Fatalf("expected ErrInvalidEpoch, got %v", err)
	}
}

func TestAdvanceRejectsOverflow(t *testing.T) {
	f := newFixture(t, defaultEpoch(30), nil)
	ctx := context.Background()
	if _, err := f.svc.Advance(ctx, math.MaxUint64); !errors.Is(err, silerrors.ErrInvalidEpoch) {
		t.Fatalf("expected ErrInvalidEpoch, got %v", err)
	}
	if got := f.svc.Gameday(); got != 30 {
		t.Fatalf("gameday moved on overflow: %d", got)
	}
	stored, ok, err := statesilo.NewStore(f.db).Gameday()
	if err != nil {
		t.Fatalf("stored gameday: %v", err)
	}
	if ok && stored != 30 {
		t.Fatalf("overflowed gameday persisted: %d", stored)
	}
	if len(f.notifier.sunrises) != 0 {
		t.Fatalf("unexpected sunrise on overflow: %+v", f.notifier.sunrises)
	}
	if got, err := f.svc.Advance(ctx, math.MaxUint64-30); err != nil || got != math.MaxUint64 {
		t.Fatalf("advance to max: %d %v", got, err)
	}
}

// flakyDB fails every Put once failPuts is set.
type flakyDB struct {
	storage.Database
	mu       sync.Mutex
	failPuts bool
}

func (d *flakyDB) Put(key, value []byte) error {
	d.mu.Lock()
	fail := d.failPuts
	d.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return d.Database.Put(key, value)
}

func (d *flakyDB) setFailing(fail bool) {
	d.mu.Lock()
	d.failPuts = fail
	d.mu.Unlock()
}

func TestAdvanceKeepsClockWhenPersistFails(t *testing.T) {
	f := newFixture(t, defaultEpoch(10), nil)
	db := &flakyDB{Database: storage.NewMemDB()}
	f.db = db
	f.svc = f.open(t, defaultEpoch(10), nil)
	db.setFailing(true)

	ctx := context.Background()
	if _, err := f.svc.Advance(ctx, 2); err == nil {
		t.Fatalf("expected persist failure")
	}
	if got := f.svc.Gameday(); got != 10 {
		t.Fatalf("clock moved without persisting: %d", got)
	}
	db.setFailing(false)
	if got, err := f.svc.Advance(ctx, 2); err != nil || got != 12 {
		t.Fatalf("advance after recovery: %d %v", got, err)
	}
}

func TestCatchUpKeepsClockWhenPersistFails(t *testing.T) {
	genesis := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := epoch.Config{Genesis: genesis, Length: time.Hour, Start: 1}
	now := func() time.Time { return genesis.Add(3 * time.Hour) }
	f := newFixture(t, cfg, now)
	db := &flakyDB{Database: storage.NewMemDB()}
	f.db = db
	f.svc = f.open(t, cfg, now)
	db.setFailing(true)

	if _, _, err := f.svc.CatchUp(context.Background()); err == nil {
		t.Fatalf("expected persist failure")
	}
	if got := f.svc.Gameday(); got != 1 {
		t.Fatalf("clock moved without persisting: %d", got)
	}
}

// blockingNotifier parks every sunrise until release is closed.
type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) PlanApplied(webhooks.PlanAppliedPayload) error {
	<-n.release
	return nil
}

func (n *blockingNotifier) Sunrise(webhooks.SunrisePayload) error {
	n.entered <- struct{}{}
	<-n.release
	return nil
}

func TestSlowNotifierDoesNotHoldServiceLock(t *testing.T) {
	j, err := journal.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	notifier := &blockingNotifier{entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc, err := New(Options{
		Silo:     newSilo(t),
		Store:    statesilo.NewStore(storage.NewMemDB()),
		Epoch:    defaultEpoch(5),
		Journal:  j,
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Advance(context.Background(), 1)
		done <- err
	}()
	select {
	case <-notifier.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("notifier never called")
	}

	reads := make(chan struct{})
	go func() {
		_, _ = svc.StateRoot()
		_ = svc.Gameday()
		close(reads)
	}()
	select {
	case <-reads:
	case <-time.After(2 * time.Second):
		close(notifier.release)
		t.Fatalf("state root blocked behind a pending notification")
	}
	if got := svc.Gameday(); got != 6 {
		t.Fatalf("unexpected gameday %d", got)
	}
	close(notifier.release)
	if err := <-done; err != nil {
		t.Fatalf("advance: %v", err)
	}
}

func TestRejectedDepositRegistersNoLedger(t *testing.T) {
	f := newFixture(t, defaultEpoch(30), nil)
	before, err := f.svc.StateRoot()
	if err != nil {
		t.Fatalf("state root: %v", err)
	}
	ctx := context.Background()
	_, err = f.svc.Deposit(ctx, DepositRequest{Account: alice, Token: "HOOLIGAN", Amount: big.NewInt(-1), BDV: big.NewInt(1)})
	if !errors.Is(err, silerrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if ledgers := f.svc.silo.Ledgers(); len(ledgers) != 0 {
		t.Fatalf("rejected deposit left %d ledgers", len(ledgers))
	}
	after, err := f.svc.StateRoot()
	if err != nil {
		t.Fatalf("state root: %v", err)
	}
	if before != after {
		t.Fatalf("state root changed on rejected deposit")
	}
	f.deposit(t, "HOOLIGAN", 10, 5)
	if ledgers := f.svc.silo.Ledgers(); len(ledgers) != 1 {
		t.Fatalf("expected one ledger after deposit, got %d", len(ledgers))
	}
}

func TestExportPlan(t *testing.T) {
	f := newFixture(t, defaultEpoch(30), nil)
	f.deposit(t, "HOOLIGAN", 10, 5)
	ctx := context.Background()
	record, _, err := f.svc.Plan(ctx, PlanRequest{Account: alice, Token: "HOOLIGAN", Target: big.NewInt(3)})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	csvExport, err := f.svc.ExportPlan(ctx, record.ID, "csv")
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	if csvExport.ContentType != "text/csv" || !strings.HasPrefix(string(csvExport.Data), "account,token,gameday") {
		t.Fatalf("unexpected csv export: %q", csvExport.Data)
	}
	jsonl, err := f.svc.ExportPlan(ctx, record.ID, "jsonl")
	if err != nil {
		t.Fatalf("export jsonl: %v", err)
	}
	if jsonl.Checksum == "" || jsonl.Checksum == csvExport.Checksum {
		t.Fatalf("unexpected jsonl checksum %q", jsonl.Checksum)
	}
	if _, err := f.svc.ExportPlan(ctx, record.ID, "xml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestIngestEventsPersist(t *testing.T) {
	f := newFixture(t, defaultEpoch(20), nil)
	ctx := context.Background()
	events := []nativesilo.Event{
		nativesilo.AddDeposit{Account: alice, Token: "HOOLIGAN", Gameday: 5, Amount: big.NewInt(10), BDV: big.NewInt(10)},
		nativesilo.AddDeposit{Account: alice, Token: "HOOLIGAN", Gameday: 8, Amount: big.NewInt(6), BDV: big.NewInt(6)},
		nativesilo.RemoveDeposits{Account: alice, Token: "HOOLIGAN", Gamedays: []uint64{5, 8}, Amounts: []*big.Int{big.NewInt(10), big.NewInt(1)}},
	}
	for _, event := range events {
		if err := f.svc.Ingest(ctx, event); err != nil {
			t.Fatalf("ingest %s: %v", event.EventType(), err)
		}
	}
	err := f.svc.Ingest(ctx, nativesilo.RemoveDeposit{Account: alice, Token: "HOOLIGAN", Gameday: 8, Amount: big.NewInt(6)})
	if !errors.Is(err, silerrors.ErrInsufficientLotBalance) {
		t.Fatalf("expected ErrInsufficientLotBalance, got %v", err)
	}
	err = f.svc.Ingest(ctx, nativesilo.AddDeposit{Account: alice, Token: "HOOLIGAN", Gameday: 21, Amount: big.NewInt(1), BDV: big.NewInt(1)})
	if !errors.Is(err, silerrors.ErrInvalidEpoch) {
		t.Fatalf("expected ErrInvalidEpoch, got %v", err)
	}

	restarted := f.open(t, defaultEpoch(20), nil)
	view, err := restarted.Balance(alice, "HOOLIGAN")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if len(view.Crates) != 1 || view.Crates[0].Gameday != 8 || view.Totals.Amount.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected restored view: %+v", view)
	}
}
