package server

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"hooliganhorde/core/rewards"
	"hooliganhorde/core/units"
	nativesilo "hooliganhorde/native/silo"
)

// EventRequest is a protocol event posted to /v1/events. Amounts are human
// units of the token; bdv uses six decimals.
type EventRequest struct {
	Type     string   `json:"type"`
	Account  string   `json:"account"`
	Token    string   `json:"token"`
	Gameday  uint64   `json:"gameday,omitempty"`
	Amount   string   `json:"amount,omitempty"`
	BDV      string   `json:"bdv,omitempty"`
	Gamedays []uint64 `json:"gamedays,omitempty"`
	Amounts  []string `json:"amounts,omitempty"`
}

func (s *Server) decodeEvent(req EventRequest) (nativesilo.Event, error) {
	if !common.IsHexAddress(req.Account) {
		return nil, badRequest("invalid account %q", req.Account)
	}
	account := common.HexToAddress(req.Account)
	token, err := s.svc.Token(req.Token)
	if err != nil {
		return nil, err
	}
	switch req.Type {
	case "AddDeposit":
		amount, err := units.Parse(req.Amount, token.Decimals)
		if err != nil {
			return nil, err
		}
		bdv, err := units.Parse(req.BDV, rewards.BDVDecimals)
		if err != nil {
			return nil, err
		}
		return nativesilo.AddDeposit{Account: account, Token: token.Symbol, Gameday: req.Gameday, Amount: amount, BDV: bdv}, nil
	case "RemoveDeposit":
		amount, err := units.Parse(req.Amount, token.Decimals)
		if err != nil {
			return nil, err
		}
		return nativesilo.RemoveDeposit{Account: account, Token: token.Symbol, Gameday: req.Gameday, Amount: amount}, nil
	case "RemoveDeposits":
		if len(req.Gamedays) == 0 || len(req.Gamedays) != len(req.Amounts) {
			return nil, badRequest("gamedays and amounts must be non-empty and of equal length")
		}
		amounts := make([]*big.Int, len(req.Amounts))
		for i, raw := range req.Amounts {
			if amounts[i], err = units.Parse(raw, token.Decimals); err != nil {
				return nil, err
			}
		}
		return nativesilo.RemoveDeposits{Account: account, Token: token.Symbol, Gamedays: req.Gamedays, Amounts: amounts}, nil
	default:
		return nil, badRequest("unknown event type %q", req.Type)
	}
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	event, err := s.decodeEvent(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Ingest(r.Context(), event); err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.svc.Balance(event.Target())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.ledgerResponse(view))
}
