package sale

import (
	"fmt"
	"math/big"
	"sync"
	"time"
)

// PriceSource reports the latest USD price for a floating currency together
// with the timestamp of its last update.
type PriceSource interface {
	LatestPrice() (price *big.Int, updatedAt time.Time, err error)
	Decimals() uint8
}

// PeggedPriceDecimals is the implied precision of pegged currencies: they are
// treated as exactly 1.00 USD with 8 decimal places, no external read.
const PeggedPriceDecimals = 8

var (
	accountingUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	peggedUnit     = new(big.Int).Exp(big.NewInt(10), big.NewInt(PeggedPriceDecimals), nil)
)

// quote is the resolved price applied to a single purchase.
type quote struct {
	price    *big.Int
	decimals uint8
}

func (q quote) scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(q.decimals)), nil)
}

// resolveQuote returns the price to apply for the currency: pegged currencies
// short-circuit to 1.00 USD, floating currencies consult the price source and
// are rejected when the quote is stale or non-positive.
func resolveQuote(cur *Currency, maxAge time.Duration, now time.Time) (quote, error) {
	if cur == nil {
		return quote{}, ErrUnknownCurrency
	}
	if cur.Fixed {
		return quote{price: new(big.Int).Set(peggedUnit), decimals: PeggedPriceDecimals}, nil
	}
	if cur.Source == nil {
		return quote{}, fmt.Errorf("%w: %s has no price source", ErrInvalidPrice, cur.Symbol)
	}
	price, updatedAt, err := cur.Source.LatestPrice()
	if err != nil {
		return quote{}, fmt.Errorf("%w: %s: %v", ErrInvalidPrice, cur.Symbol, err)
	}
	if price == nil || price.Sign() <= 0 {
		return quote{}, fmt.Errorf("%w: %s quoted %s", ErrInvalidPrice, cur.Symbol, price)
	}
	if maxAge > 0 && now.Sub(updatedAt) > maxAge {
		return quote{}, fmt.Errorf("%w: %s last updated %s", ErrPriceStale, cur.Symbol, updatedAt.UTC().Format(time.RFC3339))
	}
	return quote{price: new(big.Int).Set(price), decimals: cur.Source.Decimals()}, nil
}

// adjustDecimals scales a raw currency amount to the 18-decimal precision all
// internal math runs at. Amounts in a 6-decimal currency are multiplied by
// 10^12; currencies above 18 decimals are truncated down.
func adjustDecimals(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	adjusted := new(big.Int).Set(amount)
	if decimals == 18 {
		return adjusted
	}
	if decimals < 18 {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
		return adjusted.Mul(adjusted, factor)
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-18)), nil)
	return adjusted.Quo(adjusted, factor)
}

// usdValue converts an 18-decimal-adjusted amount into the USD accounting
// unit: adjusted * price / 10^priceDecimals.
func usdValue(adjusted *big.Int, q quote) *big.Int {
	if adjusted == nil || adjusted.Sign() <= 0 {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(adjusted, q.price)
	return value.Quo(value, q.scale())
}

// assetUnits converts an 18-decimal-adjusted amount into sale-asset units at
// the round price: adjusted * price * 10^18 / (roundPrice * 10^priceDecimals).
func assetUnits(adjusted *big.Int, q quote, roundPrice *big.Int) (*big.Int, error) {
	if roundPrice == nil || roundPrice.Sign() <= 0 {
		return nil, fmt.Errorf("%w: round price must be positive", ErrInvalidPrice)
	}
	if adjusted == nil || adjusted.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	numerator := new(big.Int).Mul(adjusted, q.price)
	numerator.Mul(numerator, accountingUnit)
	denominator := new(big.Int).Mul(roundPrice, q.scale())
	return numerator.Quo(numerator, denominator), nil
}

// StaticPriceSource is an in-memory price source used for tests and for
// operator-fed quotes during incident response.
type StaticPriceSource struct {
	mu        sync.RWMutex
	price     *big.Int
	updatedAt time.Time
	decimals  uint8
}

// NewStaticPriceSource constructs a source quoting at the given precision.
func NewStaticPriceSource(decimals uint8) *StaticPriceSource {
	return &StaticPriceSource{decimals: decimals}
}

// Set records a new quote with the supplied timestamp.
func (s *StaticPriceSource) Set(price *big.Int, updatedAt time.Time) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if price != nil {
		s.price = new(big.Int).Set(price)
	} else {
		s.price = nil
	}
	s.updatedAt = updatedAt
}

// LatestPrice implements the PriceSource interface.
func (s *StaticPriceSource) LatestPrice() (*big.Int, time.Time, error) {
	if s == nil {
		return nil, time.Time{}, fmt.Errorf("price source not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.price == nil {
		return nil, time.Time{}, fmt.Errorf("no quote recorded")
	}
	return new(big.Int).Set(s.price), s.updatedAt, nil
}

// Decimals implements the PriceSource interface.
func (s *StaticPriceSource) Decimals() uint8 {
	return s.decimals
}
