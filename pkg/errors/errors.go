package errors

import "errors"

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("amount must be positive with at most two decimal places")
	ErrSameAccount        = errors.New("sender and receiver must differ")
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrUnauthorized       = errors.New("caller is not authorized for this operation")
	ErrCodeNotFound       = errors.New("no active confirmation code")
	ErrCodeExpired        = errors.New("confirmation code expired")
	ErrCodeLocked         = errors.New("confirmation code locked after too many attempts")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrListingNotFound    = errors.New("listing not found")
	ErrListingUnavailable = errors.New("listing is not available")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrVerifyLocked       = errors.New("verification already in progress")
	ErrInternal           = errors.New("internal error")
)
