package sale

import "errors"

// State-precondition violations: the sale or round is not in the lifecycle
// state the operation requires. Callers must re-check state before retrying.
var (
	ErrSaleAlreadyStarted = errors.New("sale: already started")
	ErrSaleNotActive      = errors.New("sale: not active")
	ErrRoundNotFound      = errors.New("sale: round not defined")
	ErrRoundStarted       = errors.New("sale: round already started")
	ErrRoundNotStarted    = errors.New("sale: round not started")
	ErrRoundEnded         = errors.New("sale: round ended")
	ErrRoundClosed        = errors.New("sale: current round closed")
)

// Bounds violations: reported together with the offending value and the bound
// so the caller can correct the request.
var (
	ErrInsufficientRoundSupply = errors.New("sale: supply below sold amount")
	ErrRoundAllocation         = errors.New("sale: round allocation exceeded")
	ErrBelowMinimum            = errors.New("sale: below minimum contribution")
	ErrAboveMaximum            = errors.New("sale: above maximum allocation")
	ErrRateOverflow            = errors.New("sale: referral rates exceed denominator")
)

// Staleness and validity violations: distinct from bounds violations so a
// caller can tell "try again later" from "adjust the amount".
var (
	ErrPriceStale   = errors.New("sale: price data stale")
	ErrInvalidPrice = errors.New("sale: invalid price")
)

// External failures.
var ErrTransferFailed = errors.New("sale: asset transfer failed")

// Malformed input.
var (
	ErrZeroAmount      = errors.New("sale: amount must be positive")
	ErrSelfReferral    = errors.New("sale: self referral")
	ErrEmptyClaim      = errors.New("sale: empty claim list")
	ErrUnknownCurrency = errors.New("sale: currency not whitelisted")
	ErrValueMismatch   = errors.New("sale: attached value mismatch")
	ErrUnexpectedValue = errors.New("sale: unexpected attached value")
)

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Referral registry.
var (
	ErrReferralNotFound = errors.New("sale: referral not defined")
	ErrReferralExists   = errors.New("sale: referral already defined")
	ErrReferralEnabled  = errors.New("sale: referral already enabled")
	ErrReferralDisabled = errors.New("sale: referral disabled")
)
