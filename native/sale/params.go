package sale

import (
	"fmt"
	"math/big"
	"strings"
)

// RateDenominator is the scale for referral commission rates: rates are
// expressed in tenths of a percent, so 1000 equals 100%.
const RateDenominator = 1000

// DefaultSecondaryRewardAsset is the sale asset itself; secondary referral
// rewards are credited in sale-asset units converted at the round price.
const DefaultSecondaryRewardAsset = "NOVA"

// Params holds the globally configured limits and referral rates. All USD
// amounts carry 18 decimals.
type Params struct {
	// MinPurchase is the smallest accepted contribution per purchase.
	MinPurchase *big.Int
	// MaxAllocation caps a participant's cumulative contribution.
	MaxAllocation *big.Int
	// AuthThreshold caps self-service purchases for users that have not been
	// explicitly authorized.
	AuthThreshold *big.Int
	// PrimaryRate and SecondaryRate are the global referral commission rates
	// in tenths of a percent. Account-level overrides never fall below them.
	PrimaryRate   uint32
	SecondaryRate uint32
	// SecondaryRewardAsset names the fixed asset the secondary reward bucket
	// accrues in.
	SecondaryRewardAsset string
}

// Clone produces a deep copy of the parameters.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := &Params{
		PrimaryRate:          p.PrimaryRate,
		SecondaryRate:        p.SecondaryRate,
		SecondaryRewardAsset: p.SecondaryRewardAsset,
	}
	if p.MinPurchase != nil {
		clone.MinPurchase = new(big.Int).Set(p.MinPurchase)
	}
	if p.MaxAllocation != nil {
		clone.MaxAllocation = new(big.Int).Set(p.MaxAllocation)
	}
	if p.AuthThreshold != nil {
		clone.AuthThreshold = new(big.Int).Set(p.AuthThreshold)
	}
	return clone
}

// Normalize ensures all pointer fields are non-nil and symbols are canonical.
// The method returns the receiver to allow chaining.
func (p *Params) Normalize() *Params {
	if p == nil {
		return nil
	}
	if p.MinPurchase == nil || p.MinPurchase.Sign() < 0 {
		p.MinPurchase = big.NewInt(0)
	}
	if p.MaxAllocation == nil || p.MaxAllocation.Sign() < 0 {
		p.MaxAllocation = big.NewInt(0)
	}
	if p.AuthThreshold == nil || p.AuthThreshold.Sign() < 0 {
		p.AuthThreshold = big.NewInt(0)
	}
	p.SecondaryRewardAsset = strings.ToUpper(strings.TrimSpace(p.SecondaryRewardAsset))
	if p.SecondaryRewardAsset == "" {
		p.SecondaryRewardAsset = DefaultSecondaryRewardAsset
	}
	return p
}

// Validate performs static validation of the parameters.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("sale: nil params")
	}
	if sum := uint64(p.PrimaryRate) + uint64(p.SecondaryRate); sum > RateDenominator {
		return fmt.Errorf("%w: primary %d + secondary %d > %d", ErrRateOverflow, p.PrimaryRate, p.SecondaryRate, RateDenominator)
	}
	if p.AuthThreshold != nil && p.MaxAllocation != nil && p.MaxAllocation.Sign() > 0 &&
		p.AuthThreshold.Cmp(p.MaxAllocation) > 0 {
		return fmt.Errorf("sale: auth threshold %s exceeds max allocation %s", p.AuthThreshold, p.MaxAllocation)
	}
	return nil
}

// effectiveRate resolves which rate wins between an account override and the
// current global rate. Global rates never lower a configured account rate.
func effectiveRate(account, global uint32) uint32 {
	if account > global {
		return account
	}
	return global
}
