package engine

import "errors"

// Sentinel errors returned by the trading service. Callers match them
// with errors.Is; the wrapping text carries the specifics.
var (
	// ErrBadInput covers malformed symbols, non-positive prices and
	// quantities that are not whole board lots.
	ErrBadInput = errors.New("bad order input")

	// ErrSessionForbidden rejects an operation the current session
	// phase does not allow.
	ErrSessionForbidden = errors.New("operation not allowed in this session")

	// ErrLimitViolation rejects a limit price outside the daily band.
	ErrLimitViolation = errors.New("price outside the daily band")

	// ErrInsufficientFunds rejects a buy the available cash cannot cover.
	ErrInsufficientFunds = errors.New("insufficient available cash")

	// ErrInsufficientHolding rejects a sell exceeding the available
	// holding.
	ErrInsufficientHolding = errors.New("insufficient available holding")

	// ErrTPlusRestriction rejects a sell while any lot of the symbol is
	// still inside the settlement holding period.
	ErrTPlusRestriction = errors.New("holding not yet sellable")

	// ErrOrderNotFound means no order carries the given id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrIllegalTransition rejects a lifecycle change the order's
	// current status does not permit.
	ErrIllegalTransition = errors.New("illegal order state transition")

	// ErrMarketData means the quote feed could not supply a usable
	// price or band.
	ErrMarketData = errors.New("market data unavailable")
)
