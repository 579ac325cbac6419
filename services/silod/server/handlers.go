package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hooliganhorde/core/rewards"
	"hooliganhorde/core/types"
	"hooliganhorde/core/units"
	nativesilo "hooliganhorde/native/silo"
	"hooliganhorde/services/silod/journal"
	"hooliganhorde/services/silod/service"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// CrateView is a crate rendered in human units.
type CrateView struct {
	Gameday    uint64 `json:"gameday"`
	Amount     string `json:"amount"`
	BDV        string `json:"bdv"`
	Horde      string `json:"horde"`
	GrownHorde string `json:"grownHorde,omitempty"`
	Prospects  string `json:"prospects"`
}

// BalanceView aggregates a ledger or a plan in human units.
type BalanceView struct {
	Amount     string `json:"amount"`
	BDV        string `json:"bdv"`
	Horde      string `json:"horde"`
	GrownHorde string `json:"grownHorde"`
	TotalHorde string `json:"totalHorde"`
	Prospects  string `json:"prospects"`
}

// LedgerResponse is returned by GET /v1/silo/{account}/{token}.
type LedgerResponse struct {
	Account string      `json:"account"`
	Token   string      `json:"token"`
	Gameday uint64      `json:"gameday"`
	Crates  []CrateView `json:"crates"`
	Totals  BalanceView `json:"totals"`
}

// PlanResponse describes a journaled plan.
type PlanResponse struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Account   string      `json:"account"`
	Token     string      `json:"token"`
	Gameday   uint64      `json:"gameday"`
	Target    string      `json:"target"`
	Shortfall string      `json:"shortfall"`
	Digest    string      `json:"digest"`
	Entries   []CrateView `json:"entries"`
	Totals    BalanceView `json:"totals"`
	Recruit   *CrateView  `json:"recruit,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func crateView(crate types.Crate, decimals uint8) CrateView {
	return CrateView{
		Gameday:   crate.Gameday,
		Amount:    units.Format(crate.Amount, decimals),
		BDV:       units.BDV(crate.BDV),
		Horde:     units.Horde(crate.Horde),
		Prospects: units.Prospects(crate.Prospects),
	}
}

func balanceView(balance nativesilo.Balance, decimals uint8) BalanceView {
	return BalanceView{
		Amount:     units.Format(balance.Amount, decimals),
		BDV:        units.BDV(balance.BDV),
		Horde:      units.Horde(balance.Horde),
		GrownHorde: units.Horde(balance.GrownHorde),
		TotalHorde: units.Horde(balance.TotalHorde()),
		Prospects:  units.Prospects(balance.Prospects),
	}
}

func planResponse(record journal.PlanRecord, plan nativesilo.Plan, token nativesilo.Token) PlanResponse {
	resp := PlanResponse{
		ID:        record.ID.String(),
		Status:    string(record.Status),
		Account:   plan.Account.Hex(),
		Token:     plan.Token,
		Gameday:   plan.Gameday,
		Target:    units.Format(plan.Target, token.Decimals),
		Shortfall: units.Format(plan.Shortfall, token.Decimals),
		Digest:    record.Digest,
		Entries:   make([]CrateView, 0, len(plan.Entries)),
		Totals:    balanceView(plan.Totals, token.Decimals),
		CreatedAt: record.CreatedAt,
	}
	for _, entry := range plan.Entries {
		view := crateView(types.Crate{
			Gameday:   entry.Gameday,
			Amount:    entry.Amount,
			BDV:       entry.BDV,
			Horde:     entry.Horde,
			Prospects: entry.Prospects,
		}, token.Decimals)
		view.GrownHorde = units.Horde(entry.GrownHorde)
		resp.Entries = append(resp.Entries, view)
	}
	if plan.Recruit != nil {
		recruit := crateView(*plan.Recruit, token.Decimals)
		resp.Recruit = &recruit
	}
	return resp
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid payload: %v", err)
	}
	return nil
}

func accountParam(r *http.Request) (common.Address, error) {
	raw := chi.URLParam(r, "account")
	if !common.IsHexAddress(raw) {
		return common.Address{}, badRequest("invalid account %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func planID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid plan id")
	}
	return id, nil
}

// optionalAmount parses an optional human amount; empty strings yield nil.
func optionalAmount(raw string, decimals uint8) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return units.Parse(raw, decimals)
}

func (s *Server) handleGameday(w http.ResponseWriter, r *http.Request) {
	root, err := s.svc.StateRoot()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gameday":   s.svc.Gameday(),
		"stateRoot": root.Hex(),
	})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gamedays uint64 `json:"gamedays"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if req.Gamedays == 0 {
		req.Gamedays = 1
	}
	gameday, err := s.svc.Advance(r.Context(), req.Gamedays)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"gameday": gameday})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.svc.Balance(account, chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ledgerResponse(view))
}

func (s *Server) ledgerResponse(view service.BalanceView) LedgerResponse {
	resp := LedgerResponse{
		Account: view.Account.Hex(),
		Token:   view.Token.Symbol,
		Gameday: view.Gameday,
		Crates:  make([]CrateView, 0, len(view.Crates)),
		Totals:  balanceView(view.Totals, view.Token.Decimals),
	}
	model := s.svc.Model()
	for _, crate := range view.Crates {
		cv := crateView(crate, view.Token.Decimals)
		if grown, err := model.GrownHorde(crate, view.Gameday); err == nil {
			cv.GrownHorde = units.Horde(grown)
		}
		resp.Crates = append(resp.Crates, cv)
	}
	return resp
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.svc.Token(chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Amount  string  `json:"amount"`
		BDV     string  `json:"bdv"`
		Gameday *uint64 `json:"gameday"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := units.Parse(req.Amount, token.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bdv, err := units.Parse(req.BDV, rewards.BDVDecimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	crate, err := s.svc.Deposit(r.Context(), service.DepositRequest{
		Account: account,
		Token:   token.Symbol,
		Amount:  amount,
		BDV:     bdv,
		Gameday: req.Gameday,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, crateView(crate, token.Decimals))
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.svc.Token(chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		Amount  string `json:"amount"`
		Recruit string `json:"recruit"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	target, err := units.Parse(req.Amount, token.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recruit, err := optionalAmount(req.Recruit, token.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	record, plan, err := s.svc.Plan(r.Context(), service.PlanRequest{
		Account: account,
		Token:   token.Symbol,
		Target:  target,
		Recruit: recruit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, planResponse(record, plan, token))
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := planID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	record, plan, err := s.svc.GetPlan(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.svc.Token(plan.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(record, plan, token))
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	id, err := planID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	plan, removed, err := s.svc.ApplyPlan(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.svc.Token(plan.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]CrateView, 0, len(removed))
	for _, crate := range removed {
		views = append(views, crateView(crate, token.Decimals))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id.String(),
		"status":  string(journal.StatusApplied),
		"removed": views,
		"totals":  balanceView(plan.Totals, token.Decimals),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := planID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	export, err := s.svc.ExportPlan(r.Context(), id, r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Header().Set("X-Checksum-SHA256", export.Checksum)
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	from, err := s.svc.Token(chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		To       string `json:"to"`
		Gameday  uint64 `json:"gameday"`
		Amount   string `json:"amount"`
		ToAmount string `json:"toAmount"`
		BDV      string `json:"bdv"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := s.svc.Token(req.To)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := units.Parse(req.Amount, from.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toAmount, err := optionalAmount(req.ToAmount, to.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bdv, err := optionalAmount(req.BDV, rewards.BDVDecimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	crate, err := s.svc.Convert(r.Context(), service.ConvertRequest{
		Account:  account,
		From:     from.Symbol,
		To:       to.Symbol,
		Gameday:  req.Gameday,
		Amount:   amount,
		ToAmount: toAmount,
		BDV:      bdv,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, crateView(crate, to.Decimals))
}
