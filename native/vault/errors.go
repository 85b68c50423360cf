package vault

import "errors"

var (
	// ErrInvalidAmount reports a non-positive amount or one that would overflow 256 bits.
	ErrInvalidAmount = errors.New("vault: invalid amount")
	// ErrInsufficientPool reports a withdrawal larger than the uncommitted reward balance.
	ErrInsufficientPool = errors.New("vault: insufficient reward pool")
	// ErrUnderflow reports a share removal larger than the held balance.
	ErrUnderflow = errors.New("vault: share underflow")
	// ErrNothingToRedeem reports a redemption that would pay nothing.
	ErrNothingToRedeem = errors.New("vault: nothing to redeem")
	// ErrTransferFailed wraps failures reported by the token ledger.
	ErrTransferFailed = errors.New("vault: token transfer failed")

	ErrUnknownValidator = errors.New("vault: unknown validator")
	ErrValidatorExists  = errors.New("vault: validator already registered")
	ErrUnknownPosition  = errors.New("vault: unknown position")
	ErrNilState         = errors.New("vault: state not configured")
	ErrNotInitialized   = errors.New("vault: pool not initialised")
	// ErrAlreadyInitialized reports a second Initialize on a configured pool.
	ErrAlreadyInitialized = errors.New("vault: pool already initialised")
	// ErrFutureEpoch reports an advance past the epoch clock.
	ErrFutureEpoch = errors.New("vault: epoch has not elapsed")
	// ErrInvalidCommission reports a commission rate of 100% or more.
	ErrInvalidCommission = errors.New("vault: invalid commission rate")
	// ErrDelegationCap reports delegated shares exceeding the validator's cap.
	ErrDelegationCap = errors.New("vault: delegation cap exceeded")
)
