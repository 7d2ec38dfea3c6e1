package economy

import "errors"

var (
	ErrValidation            = errors.New("validation failed")
	ErrUnauthorized          = errors.New("invalid credentials")
	ErrForbidden             = errors.New("admin role required")
	ErrNotFound              = errors.New("not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientHoldings  = errors.New("insufficient holdings")
	ErrInsufficientBankFunds = errors.New("central bank cannot cover payout")
	ErrInvalidState          = errors.New("invalid state")
)
