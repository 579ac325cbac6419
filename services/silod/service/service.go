package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"hooliganhorde/core/epoch"
	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/rewards"
	"hooliganhorde/core/types"
	"hooliganhorde/integrations/exports"
	"hooliganhorde/integrations/webhooks"
	nativesilo "hooliganhorde/native/silo"
	"hooliganhorde/observability"
	"hooliganhorde/observability/metrics"
	"hooliganhorde/services/silod/journal"
	statesilo "hooliganhorde/state/silo"
)

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("service: unsupported export format")

// Notifier receives silo notifications. *webhooks.Dispatcher satisfies it.
type Notifier interface {
	PlanApplied(webhooks.PlanAppliedPayload) error
	Sunrise(webhooks.SunrisePayload) error
}

// Notifiers fans a notification out to every member.
type Notifiers []Notifier

// PlanApplied forwards the payload to every notifier.
func (n Notifiers) PlanApplied(payload webhooks.PlanAppliedPayload) error {
	var errs []error
	for _, notifier := range n {
		if err := notifier.PlanApplied(payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sunrise forwards the payload to every notifier.
func (n Notifiers) Sunrise(payload webhooks.SunrisePayload) error {
	var errs []error
	for _, notifier := range n {
		if err := notifier.Sunrise(payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Options wires the dependencies of a Service.
type Options struct {
	Silo     *nativesilo.Silo
	Store    *statesilo.Store
	Epoch    epoch.Config
	Journal  *journal.Journal
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service owns the in-memory silo and serializes every mutation. Ledgers are
// persisted after each successful write.
type Service struct {
	mu        sync.Mutex
	silo      *nativesilo.Silo
	store     *statesilo.Store
	epoch     epoch.Config
	clock     *epoch.Clock
	planner   *nativesilo.Planner
	converter *nativesilo.Converter
	journal   *journal.Journal
	notifier  Notifier
	metrics   *metrics.SiloMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// New restores the persisted ledgers and gameday and returns a ready
// service.
func New(opts Options) (*Service, error) {
	if opts.Silo == nil {
		return nil, fmt.Errorf("service: silo required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("service: store required")
	}
	if opts.Journal == nil {
		return nil, fmt.Errorf("service: journal required")
	}
	if err := opts.Epoch.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	start := opts.Epoch.Start
	stored, ok, err := opts.Store.Gameday()
	if err != nil {
		return nil, fmt.Errorf("service: load gameday: %w", err)
	}
	if ok && stored > start {
		start = stored
	}
	loaded, err := opts.Store.Load(opts.Silo)
	if err != nil {
		return nil, fmt.Errorf("service: load ledgers: %w", err)
	}
	clock := epoch.NewClock(start)
	model := opts.Silo.Model()
	svc := &Service{
		silo:      opts.Silo,
		store:     opts.Store,
		epoch:     opts.Epoch,
		clock:     clock,
		planner:   nativesilo.NewPlanner(model),
		converter: nativesilo.NewConverter(model, clock),
		journal:   opts.Journal,
		notifier:  opts.Notifier,
		metrics:   metrics.Silo(),
		logger:    logger,
		now:       now,
	}
	svc.metrics.SetGameday(start)
	for _, ledger := range opts.Silo.Ledgers() {
		svc.metrics.SetCrates(ledger.Token().Symbol, ledger.Len())
	}
	logger.Info("silo state restored", slog.Int("ledgers", loaded), slog.Uint64("gameday", start))
	return svc, nil
}

// Gameday returns the current gameday.
func (s *Service) Gameday() uint64 {
	return s.clock.Current()
}

// Model returns the reward model of the silo.
func (s *Service) Model() *rewards.Model {
	return s.silo.Model()
}

// Token resolves a whitelisted token.
func (s *Service) Token(symbol string) (nativesilo.Token, error) {
	return s.silo.Token(symbol)
}

// Tokens lists the whitelisted tokens.
func (s *Service) Tokens() []nativesilo.Token {
	return s.silo.Tokens()
}

// Advance moves the gameday forward by n and persists it. Steps that would
// overflow the gameday are rejected with ErrInvalidEpoch.
func (s *Service) Advance(ctx context.Context, n uint64) (uint64, error) {
	if n == 0 {
		return 0, fmt.Errorf("%w: advance requires at least one gameday", silerrors.ErrInvalidEpoch)
	}
	s.mu.Lock()
	current, err := s.clock.Peek(n)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	payload, err := s.sunrise(ctx, current, n-1)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.notifySunrise(payload)
	return current, nil
}

// CatchUp moves the gameday to the one derived from the wall clock. It
// reports whether the gameday changed.
func (s *Service) CatchUp(ctx context.Context) (uint64, bool, error) {
	s.mu.Lock()
	previous := s.clock.Current()
	target := s.epoch.GamedayAt(s.now())
	if target <= previous {
		s.mu.Unlock()
		return previous, false, nil
	}
	payload, err := s.sunrise(ctx, target, target-previous-1)
	s.mu.Unlock()
	if err != nil {
		return 0, false, err
	}
	s.notifySunrise(payload)
	return target, true, nil
}

// sunrise persists current and only then moves the clock. Callers hold s.mu
// and deliver the returned payload after releasing it.
func (s *Service) sunrise(_ context.Context, current, skipped uint64) (*webhooks.SunrisePayload, error) {
	if err := s.store.PutGameday(current); err != nil {
		return nil, fmt.Errorf("persist gameday: %w", err)
	}
	if err := s.clock.Set(current); err != nil {
		return nil, err
	}
	s.metrics.SetGameday(current)
	if skipped > 0 {
		s.metrics.ObserveCatchUp(skipped)
	}
	s.logger.Info("sunrise", slog.Uint64("gameday", current), slog.Uint64("skipped", skipped))
	if s.notifier == nil {
		return nil, nil
	}
	root, err := statesilo.StateRoot(s.silo)
	if err != nil {
		s.logger.Warn("sunrise state root", slog.Any("error", err))
		return nil, nil
	}
	return &webhooks.SunrisePayload{
		Type:      webhooks.EventSunrise,
		Gameday:   current,
		Skipped:   skipped,
		StateRoot: root.Hex(),
		At:        s.now(),
	}, nil
}

func (s *Service) notifySunrise(payload *webhooks.SunrisePayload) {
	if payload == nil || s.notifier == nil {
		return
	}
	if err := s.notifier.Sunrise(*payload); err != nil {
		s.logger.Warn("sunrise webhook not queued", slog.Any("error", err))
	}
}

// DepositRequest credits a deposit. A nil Gameday deposits at the current
// gameday.
type DepositRequest struct {
	Account common.Address
	Token   string
	Amount  *big.Int
	BDV     *big.Int
	Gameday *uint64
}

// Deposit records a deposit and persists the ledger. A ledger is only
// registered with the silo once its first deposit has been saved.
func (s *Service) Deposit(_ context.Context, req DepositRequest) (types.Crate, error) {
	token, err := s.silo.Token(req.Token)
	if err != nil {
		return types.Crate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.clock.Current()
	gameday := current
	if req.Gameday != nil {
		gameday = *req.Gameday
		if gameday > current {
			return types.Crate{}, fmt.Errorf("%w: deposit gameday %d is ahead of %d", silerrors.ErrInvalidEpoch, gameday, current)
		}
	}
	ledger, registered := s.silo.Lookup(req.Account, token.Symbol)
	if !registered {
		ledger = nativesilo.NewLedger(req.Account, token, s.silo.Model())
	}
	snapshot := ledger.Clone()
	crate, err := snapshot.Deposit(gameday, req.Amount, req.BDV)
	if err != nil {
		return types.Crate{}, err
	}
	if err := s.store.SaveLedger(snapshot); err != nil {
		return types.Crate{}, err
	}
	if !registered {
		if ledger, err = s.silo.Ledger(req.Account, token.Symbol); err != nil {
			return types.Crate{}, err
		}
	}
	if _, err := ledger.Deposit(gameday, req.Amount, req.BDV); err != nil {
		return types.Crate{}, err
	}
	s.metrics.ObserveDeposit(token.Symbol)
	s.metrics.SetCrates(token.Symbol, ledger.Len())
	return crate, nil
}

// Ingest applies a protocol event to its ledger and persists the result.
// Deposits ahead of the current gameday are rejected.
func (s *Service) Ingest(_ context.Context, event nativesilo.Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", silerrors.ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ingest(event)
	observability.Events().RecordEvent(event.EventType(), err)
	return err
}

func (s *Service) ingest(event nativesilo.Event) error {
	current := s.clock.Current()
	if add, ok := event.(nativesilo.AddDeposit); ok && add.Gameday > current {
		return fmt.Errorf("%w: deposit gameday %d is ahead of %d", silerrors.ErrInvalidEpoch, add.Gameday, current)
	}
	preview, err := s.silo.Preview(event)
	if err != nil {
		return err
	}
	if err := s.store.SaveLedger(preview); err != nil {
		return err
	}
	if err := s.silo.Apply(event); err != nil {
		return err
	}
	symbol := preview.Token().Symbol
	if _, ok := event.(nativesilo.AddDeposit); ok {
		s.metrics.ObserveDeposit(symbol)
	}
	s.metrics.SetCrates(symbol, preview.Len())
	s.logger.Info("event ingested",
		slog.String("type", event.EventType()),
		slog.String("account", preview.Account().Hex()),
		slog.String("token", symbol),
		slog.Int("crates", preview.Len()))
	return nil
}

// BalanceView is the state of one ledger at the current gameday.
type BalanceView struct {
	Account common.Address
	Token   nativesilo.Token
	Gameday uint64
	Crates  []types.Crate
	Totals  nativesilo.Balance
}

// Balance returns the crates and totals of a ledger. Unknown ledgers of a
// whitelisted token are reported empty.
func (s *Service) Balance(account common.Address, symbol string) (BalanceView, error) {
	token, err := s.silo.Token(symbol)
	if err != nil {
		return BalanceView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.clock.Current()
	ledger, ok := s.silo.Lookup(account, token.Symbol)
	if !ok {
		ledger = nativesilo.NewLedger(account, token, s.silo.Model())
	}
	totals, err := ledger.Totals(current)
	if err != nil {
		return BalanceView{}, err
	}
	return BalanceView{
		Account: account,
		Token:   token,
		Gameday: current,
		Crates:  ledger.Crates(),
		Totals:  totals,
	}, nil
}

// PlanRequest asks for a withdrawal plan. A positive Recruit amount plans as
// if that many earned tokens were recruited at the current gameday first.
type PlanRequest struct {
	Account common.Address
	Token   string
	Target  *big.Int
	Recruit *big.Int
}

// Plan computes and journals a withdrawal plan. The ledger is not modified.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (journal.PlanRecord, nativesilo.Plan, error) {
	token, err := s.silo.Token(req.Token)
	if err != nil {
		return journal.PlanRecord{}, nativesilo.Plan{}, err
	}
	s.mu.Lock()
	current := s.clock.Current()
	ledger, ok := s.silo.Lookup(req.Account, token.Symbol)
	if !ok {
		ledger = nativesilo.NewLedger(req.Account, token, s.silo.Model())
	}
	var plan nativesilo.Plan
	if req.Recruit != nil && req.Recruit.Sign() > 0 {
		var recruit types.Crate
		recruit, err = nativesilo.RecruitCrate(s.silo.Model(), token, current, req.Recruit)
		if err == nil {
			plan, err = s.planner.PlanWithRecruit(ledger, recruit, req.Target, current)
		}
	} else {
		plan, err = s.planner.Plan(ledger, req.Target, current)
	}
	s.mu.Unlock()
	if err != nil {
		return journal.PlanRecord{}, nativesilo.Plan{}, err
	}
	s.metrics.ObservePlan(token.Symbol, plan.Shortfall)
	record, err := s.journal.Record(ctx, plan)
	if err != nil {
		return journal.PlanRecord{}, nativesilo.Plan{}, err
	}
	return record, plan, nil
}

// GetPlan loads a journaled plan.
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (journal.PlanRecord, nativesilo.Plan, error) {
	record, err := s.journal.Get(ctx, id)
	if err != nil {
		return journal.PlanRecord{}, nativesilo.Plan{}, err
	}
	plan, err := record.Plan()
	if err != nil {
		return journal.PlanRecord{}, nativesilo.Plan{}, err
	}
	return record, plan, nil
}

// ApplyPlan debits a pending plan from its ledger. Plans computed against an
// older ledger snapshot are marked stale and rejected with ErrStalePlan.
func (s *Service) ApplyPlan(ctx context.Context, id uuid.UUID) (nativesilo.Plan, []types.Crate, error) {
	record, plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return nativesilo.Plan{}, nil, err
	}
	if record.Status != journal.StatusPending {
		return nativesilo.Plan{}, nil, fmt.Errorf("%w: plan %s is %s", silerrors.ErrStalePlan, id, strings.ToLower(string(record.Status)))
	}

	removed, err := s.applyPlan(ctx, id, plan)
	if err != nil {
		return nativesilo.Plan{}, nil, err
	}
	if s.notifier != nil {
		if err := s.notifier.PlanApplied(webhooks.PlanAppliedPayload{
			Type:      webhooks.EventPlanApplied,
			PlanID:    id.String(),
			Account:   plan.Account.Hex(),
			Token:     plan.Token,
			Gameday:   plan.Gameday,
			Amount:    plan.Totals.Amount.String(),
			Horde:     plan.Totals.TotalHorde().String(),
			Crates:    len(removed),
			AppliedAt: s.now(),
		}); err != nil {
			s.logger.Warn("plan webhook not queued", slog.Any("error", err))
		}
	}
	return plan, removed, nil
}

func (s *Service) applyPlan(ctx context.Context, id uuid.UUID, plan nativesilo.Plan) ([]types.Crate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, err := s.silo.Ledger(plan.Account, plan.Token)
	if err != nil {
		return nil, err
	}
	working := ledger.Clone()
	removed, err := nativesilo.Apply(working, plan)
	if errors.Is(err, silerrors.ErrStalePlan) {
		s.metrics.ObserveStalePlan()
		if markErr := s.journal.MarkStale(ctx, id); markErr != nil {
			s.logger.Warn("mark plan stale", slog.String("plan", id.String()), slog.Any("error", markErr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveLedger(working); err != nil {
		return nil, err
	}
	if _, err := nativesilo.Apply(ledger, plan); err != nil {
		return nil, err
	}
	if err := s.journal.MarkApplied(ctx, id); err != nil {
		return nil, err
	}
	s.metrics.ObserveApplied(plan.Token)
	s.metrics.SetCrates(plan.Token, ledger.Len())
	s.logger.Info("plan applied",
		slog.String("plan", id.String()),
		slog.String("account", plan.Account.Hex()),
		slog.String("token", plan.Token),
		slog.Int("crates", len(removed)))
	return removed, nil
}

// ConvertRequest converts part of a crate of From into To. Nil ToAmount
// keeps the source amount and nil BDV carries the removed source BDV.
type ConvertRequest struct {
	Account  common.Address
	From     string
	To       string
	Gameday  uint64
	Amount   *big.Int
	ToAmount *big.Int
	BDV      *big.Int
}

// Convert moves value between two ledgers of the same account.
func (s *Service) Convert(_ context.Context, req ConvertRequest) (types.Crate, error) {
	destinationToken, err := s.silo.Token(req.To)
	if err != nil {
		return types.Crate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.silo.Lookup(req.Account, req.From)
	if !ok {
		if _, err := s.silo.Token(req.From); err != nil {
			return types.Crate{}, err
		}
		return types.Crate{}, fmt.Errorf("%w: %s has no %s deposits", silerrors.ErrCrateNotFound, req.Account.Hex(), req.From)
	}
	destination, err := s.silo.Ledger(req.Account, destinationToken.Symbol)
	if err != nil {
		return types.Crate{}, err
	}
	workingSource := source.Clone()
	workingDestination := workingSource
	if destination != source {
		workingDestination = destination.Clone()
	}
	target := nativesilo.ConvertTarget{
		Amount:          req.ToAmount,
		BDV:             req.BDV,
		ProspectsPerBDV: destinationToken.ProspectsPerBDV,
	}
	if _, err := s.converter.ConvertInto(workingSource, workingDestination, req.Gameday, req.Amount, target); err != nil {
		return types.Crate{}, err
	}
	if err := s.store.SaveLedger(workingSource); err != nil {
		return types.Crate{}, err
	}
	if destination != source {
		if err := s.store.SaveLedger(workingDestination); err != nil {
			return types.Crate{}, err
		}
	}
	converted, err := s.converter.ConvertInto(source, destination, req.Gameday, req.Amount, target)
	if err != nil {
		return types.Crate{}, err
	}
	s.metrics.ObserveConvert(source.Token().Symbol, destination.Token().Symbol)
	s.metrics.SetCrates(source.Token().Symbol, source.Len())
	s.metrics.SetCrates(destination.Token().Symbol, destination.Len())
	return converted, nil
}

// Export formats.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Export is a rendered plan document.
type Export struct {
	Data        []byte
	Checksum    string
	ContentType string
	Filename    string
}

// ExportPlan renders a journaled plan as CSV or JSON lines.
func (s *Service) ExportPlan(ctx context.Context, id uuid.UUID, format string) (Export, error) {
	_, plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return Export{}, err
	}
	var (
		data     []byte
		checksum string
		out      Export
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatCSV:
		data, checksum, err = exports.PlanCSV(plan)
		out.ContentType = "text/csv"
		out.Filename = id.String() + ".csv"
	case FormatJSONL:
		data, checksum, err = exports.PlanJSONL(plan)
		out.ContentType = "application/x-ndjson"
		out.Filename = id.String() + ".jsonl"
	default:
		return Export{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Export{}, err
	}
	out.Data = data
	out.Checksum = checksum
	return out, nil
}

// StateRoot commits to every ledger of the silo.
func (s *Service) StateRoot() (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statesilo.StateRoot(s.silo)
}
