package entity

import "errors"

// Domain errors shared by repositories and usecases. Handlers match these
// with errors.Is to pick status codes and user-facing messages.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotOwner            = errors.New("transaction belongs to another wallet")
	ErrNotRefundable       = errors.New("only spend transactions can be refunded")
	ErrAlreadyRefunded     = errors.New("transaction already refunded")
	ErrFeatureNotFound     = errors.New("feature not found or disabled")
	ErrAlreadyApplied      = errors.New("feature already active on this target")
	ErrRuleNotFound        = errors.New("earning rule not found or disabled")
	ErrTrustLevelTooLow    = errors.New("trust level too low")
	ErrContentTooShort     = errors.New("content too short")
	ErrDailyCapReached     = errors.New("daily cap reached")
	ErrYaksDisabled        = errors.New("yaks are disabled")
	ErrTargetNotFound      = errors.New("target not found")
	ErrPackageNotFound     = errors.New("package not found")
)
