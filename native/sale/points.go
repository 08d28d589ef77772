package sale

import "math/big"

// Nova Points accrue as a step function of the USD contribution size. The
// multiplier of the highest threshold not exceeding the contribution applies;
// contributions below the first threshold earn nothing.
var pointsTiers = []struct {
	thresholdUSD int64
	multiplier   int64
}{
	{20000, 20},
	{15000, 16},
	{10000, 13},
	{5000, 10},
	{1000, 9},
	{500, 8},
	{250, 7},
	{50, 6},
}

// referrerBonusPct is the share of the buyer's points awarded to the referrer.
const referrerBonusPct = 20

var usdUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PointsForUSD returns the Nova Points earned for a contribution of usdAmount
// (USD accounting units, 18 decimals). Integer division truncates.
func PointsForUSD(usdAmount *big.Int) *big.Int {
	if usdAmount == nil || usdAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	multiplier := int64(0)
	for _, tier := range pointsTiers {
		threshold := new(big.Int).Mul(big.NewInt(tier.thresholdUSD), usdUnit)
		if usdAmount.Cmp(threshold) >= 0 {
			multiplier = tier.multiplier
			break
		}
	}
	if multiplier == 0 {
		return big.NewInt(0)
	}
	points := new(big.Int).Mul(usdAmount, big.NewInt(multiplier))
	return points.Quo(points, usdUnit)
}

// ReferrerBonus returns the referrer's share of the buyer's points.
func ReferrerBonus(points *big.Int) *big.Int {
	if points == nil || points.Sign() <= 0 {
		return big.NewInt(0)
	}
	bonus := new(big.Int).Mul(points, big.NewInt(referrerBonusPct))
	return bonus.Quo(bonus, big.NewInt(100))
}
