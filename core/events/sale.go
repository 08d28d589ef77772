package events

import (
	"math/big"

	"novasale/core/types"
	"novasale/crypto"
)

const (
	TypeSaleActivated        = "sale.activated"
	TypeSaleDeactivated      = "sale.deactivated"
	TypeRoundConfigured      = "sale.round.configured"
	TypeRoundUpdated         = "sale.round.updated"
	TypeRoundStarted         = "sale.round.started"
	TypeRoundEnded           = "sale.round.ended"
	TypePurchaseCompleted    = "sale.purchase.completed"
	TypePointsAwarded        = "sale.points.awarded"
	TypeReferralRegistered   = "sale.referral.registered"
	TypeReferralEnabled      = "sale.referral.enabled"
	TypeReferralDisabled     = "sale.referral.disabled"
	TypeReferralRewardClaims = "sale.referral.reward_claimed"
)

// SaleActivated is emitted when the global sale transitions to the started state.
type SaleActivated struct {
	Timestamp int64
}

func (SaleActivated) EventType() string { return TypeSaleActivated }

func (e SaleActivated) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleActivated,
		Attributes: map[string]string{
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// SaleDeactivated is emitted when the global sale is permanently ended.
type SaleDeactivated struct {
	Timestamp int64
}

func (SaleDeactivated) EventType() string { return TypeSaleDeactivated }

func (e SaleDeactivated) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleDeactivated,
		Attributes: map[string]string{
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// RoundConfigured records the append of a new sale round.
type RoundConfigured struct {
	Index  uint64
	Price  *big.Int
	Supply *big.Int
}

func (RoundConfigured) EventType() string { return TypeRoundConfigured }

func (e RoundConfigured) Event() *types.Event {
	return &types.Event{
		Type: TypeRoundConfigured,
		Attributes: map[string]string{
			"index":  uintToString(e.Index),
			"price":  formatAmount(e.Price),
			"supply": formatAmount(e.Supply),
		},
	}
}

// RoundUpdated records a price or supply adjustment on a not-yet-finalised round.
type RoundUpdated struct {
	Index uint64
	Field string
	Value *big.Int
}

func (RoundUpdated) EventType() string { return TypeRoundUpdated }

func (e RoundUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRoundUpdated,
		Attributes: map[string]string{
			"index": uintToString(e.Index),
			"field": e.Field,
			"value": formatAmount(e.Value),
		},
	}
}

// RoundStarted is emitted when a round becomes the active round.
type RoundStarted struct {
	Index uint64
	Price *big.Int
}

func (RoundStarted) EventType() string { return TypeRoundStarted }

func (e RoundStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeRoundStarted,
		Attributes: map[string]string{
			"index": uintToString(e.Index),
			"price": formatAmount(e.Price),
		},
	}
}

// RoundEnded is emitted when a round is closed, either explicitly or as a side
// effect of starting a successor round.
type RoundEnded struct {
	Index uint64
	Sold  *big.Int
}

func (RoundEnded) EventType() string { return TypeRoundEnded }

func (e RoundEnded) Event() *types.Event {
	return &types.Event{
		Type: TypeRoundEnded,
		Attributes: map[string]string{
			"index": uintToString(e.Index),
			"sold":  formatAmount(e.Sold),
		},
	}
}

// PurchaseCompleted carries the full accounting effect of one accepted purchase.
type PurchaseCompleted struct {
	User       [20]byte
	Referrer   [20]byte
	Asset      string
	Amount     *big.Int
	RoundPrice *big.Int
	AssetUnits *big.Int
	RoundIndex uint64
	USDAmount  *big.Int
	AssetPrice *big.Int
	Points     *big.Int
}

func (PurchaseCompleted) EventType() string { return TypePurchaseCompleted }

func (e PurchaseCompleted) Event() *types.Event {
	attrs := map[string]string{
		"user":       crypto.MustNewAddress(crypto.NovaPrefix, e.User[:]).String(),
		"asset":      normalizeAsset(e.Asset),
		"amount":     formatAmount(e.Amount),
		"roundPrice": formatAmount(e.RoundPrice),
		"assetUnits": formatAmount(e.AssetUnits),
		"roundIndex": uintToString(e.RoundIndex),
		"usdAmount":  formatAmount(e.USDAmount),
		"assetPrice": formatAmount(e.AssetPrice),
		"points":     formatAmount(e.Points),
	}
	if e.Referrer != ([20]byte{}) {
		attrs["referrer"] = crypto.MustNewAddress(crypto.NovaPrefix, e.Referrer[:]).String()
	}
	return &types.Event{Type: TypePurchaseCompleted, Attributes: attrs}
}

// PointsAwarded is emitted for every Nova Points accrual, both the buyer's own
// award and the referrer bonus.
type PointsAwarded struct {
	Address [20]byte
	Amount  *big.Int
	Reason  string
}

func (PointsAwarded) EventType() string { return TypePointsAwarded }

func (e PointsAwarded) Event() *types.Event {
	return &types.Event{
		Type: TypePointsAwarded,
		Attributes: map[string]string{
			"address": crypto.MustNewAddress(crypto.NovaPrefix, e.Address[:]).String(),
			"amount":  formatAmount(e.Amount),
			"reason":  e.Reason,
		},
	}
}

// ReferralRegistered fires once per user, the first time the user is associated
// with an effective referrer.
type ReferralRegistered struct {
	User     [20]byte
	Referrer [20]byte
}

func (ReferralRegistered) EventType() string { return TypeReferralRegistered }

func (e ReferralRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeReferralRegistered,
		Attributes: map[string]string{
			"user":     crypto.MustNewAddress(crypto.NovaPrefix, e.User[:]).String(),
			"referrer": crypto.MustNewAddress(crypto.NovaPrefix, e.Referrer[:]).String(),
		},
	}
}

// ReferralEnabled is emitted when a referral account is re-enabled.
type ReferralEnabled struct {
	Referrer [20]byte
}

func (ReferralEnabled) EventType() string { return TypeReferralEnabled }

func (e ReferralEnabled) Event() *types.Event {
	return &types.Event{
		Type: TypeReferralEnabled,
		Attributes: map[string]string{
			"referrer": crypto.MustNewAddress(crypto.NovaPrefix, e.Referrer[:]).String(),
		},
	}
}

// ReferralDisabled is emitted when a referral account is disabled.
type ReferralDisabled struct {
	Referrer [20]byte
}

func (ReferralDisabled) EventType() string { return TypeReferralDisabled }

func (e ReferralDisabled) Event() *types.Event {
	return &types.Event{
		Type: TypeReferralDisabled,
		Attributes: map[string]string{
			"referrer": crypto.MustNewAddress(crypto.NovaPrefix, e.Referrer[:]).String(),
		},
	}
}

// ReferralRewardClaimed records one asset bucket paid out during a claim.
type ReferralRewardClaimed struct {
	Referrer [20]byte
	Asset    string
	Amount   *big.Int
}

func (ReferralRewardClaimed) EventType() string { return TypeReferralRewardClaims }

func (e ReferralRewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeReferralRewardClaims,
		Attributes: map[string]string{
			"referrer": crypto.MustNewAddress(crypto.NovaPrefix, e.Referrer[:]).String(),
			"asset":    normalizeAsset(e.Asset),
			"amount":   formatAmount(e.Amount),
		},
	}
}
