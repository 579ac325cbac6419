package errors

import stderrors "errors"

var (
	// ErrInvalidEpoch reports a gameday the clock cannot move to.
	ErrInvalidEpoch = stderrors.New("silo: gameday cannot regress")
	// ErrInsufficientLotBalance reports a debit larger than the crate holds.
	ErrInsufficientLotBalance = stderrors.New("silo: debit exceeds crate balance")
	// ErrInvalidAmount reports an amount that is nil or negative.
	ErrInvalidAmount = stderrors.New("silo: invalid amount")
	// ErrCrateNotFound reports a debit against a gameday with no crate.
	ErrCrateNotFound = stderrors.New("silo: crate not found")
	// ErrUnknownToken reports a token missing from the whitelist.
	ErrUnknownToken = stderrors.New("silo: unknown token")
	// ErrStalePlan reports a plan whose ledger changed after it was computed.
	ErrStalePlan = stderrors.New("silo: plan computed against a stale ledger")
)
