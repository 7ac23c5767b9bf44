package daybook

import "errors"

var (
	ErrMalformedTrialBalance = errors.New("trial balance columns do not line up")
	ErrMissingGUID           = errors.New("voucher has no GUID")
	ErrInvalidDate           = errors.New("voucher date is not YYYYMMDD")
	ErrMissingItemAccount    = errors.New("inventory line has no accounting allocation")
	ErrUnknownItem           = errors.New("item has no stock unit in the directory")
	ErrInvalidQuantity       = errors.New("invalid inventory quantity")
)
