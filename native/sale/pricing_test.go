package sale

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func bigFromString(t *testing.T, raw string) *big.Int {
	t.Helper()
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		t.Fatalf("invalid big integer literal %q", raw)
	}
	return value
}

func TestAdjustDecimals(t *testing.T) {
	if got := adjustDecimals(big.NewInt(100_000_000), 6); got.Cmp(usd(100)) != 0 {
		t.Fatalf("6-decimal adjust = %s, want %s", got, usd(100))
	}
	same := usd(5)
	if got := adjustDecimals(same, 18); got.Cmp(same) != 0 {
		t.Fatalf("18-decimal adjust = %s, want %s", got, same)
	}
	raw := new(big.Int).Mul(big.NewInt(7), new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil))
	if got := adjustDecimals(raw, 24); got.Cmp(usd(7)) != 0 {
		t.Fatalf("24-decimal adjust = %s, want %s", got, usd(7))
	}
	if got := adjustDecimals(nil, 6); got.Sign() != 0 {
		t.Fatalf("nil adjust = %s, want 0", got)
	}
}

func TestResolveQuotePegged(t *testing.T) {
	cur := &Currency{Symbol: "USDT", Decimals: 6, Fixed: true}
	q, err := resolveQuote(cur, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("resolveQuote: %v", err)
	}
	if q.price.Cmp(big.NewInt(100_000_000)) != 0 || q.decimals != PeggedPriceDecimals {
		t.Fatalf("pegged quote = %s @ %d decimals", q.price, q.decimals)
	}
}

func TestResolveQuoteFloating(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	source := NewStaticPriceSource(8)
	source.Set(big.NewInt(250_000_000_000), now.Add(-30*time.Second))
	cur := &Currency{Symbol: "ETH", Decimals: 18, Source: source}

	q, err := resolveQuote(cur, time.Minute, now)
	if err != nil {
		t.Fatalf("resolveQuote: %v", err)
	}
	if q.price.Cmp(big.NewInt(250_000_000_000)) != 0 {
		t.Fatalf("floating quote = %s", q.price)
	}

	source.Set(big.NewInt(250_000_000_000), now.Add(-2*time.Minute))
	if _, err := resolveQuote(cur, time.Minute, now); !errors.Is(err, ErrPriceStale) {
		t.Fatalf("stale quote error = %v, want ErrPriceStale", err)
	}

	source.Set(big.NewInt(0), now)
	if _, err := resolveQuote(cur, time.Minute, now); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero quote error = %v, want ErrInvalidPrice", err)
	}

	if _, err := resolveQuote(&Currency{Symbol: "ETH", Decimals: 18}, time.Minute, now); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("missing source error = %v, want ErrInvalidPrice", err)
	}
}

func TestResolveQuoteStalenessDisabled(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	source := NewStaticPriceSource(8)
	source.Set(big.NewInt(100_000_000), now.Add(-24*time.Hour))
	cur := &Currency{Symbol: "ETH", Decimals: 18, Source: source}
	if _, err := resolveQuote(cur, 0, now); err != nil {
		t.Fatalf("resolveQuote with disabled staleness: %v", err)
	}
}

func TestUSDValue(t *testing.T) {
	pegged := quote{price: big.NewInt(100_000_000), decimals: 8}
	if got := usdValue(usd(100), pegged); got.Cmp(usd(100)) != 0 {
		t.Fatalf("pegged usdValue = %s, want %s", got, usd(100))
	}
	floating := quote{price: big.NewInt(250_000_000_000), decimals: 8}
	if got := usdValue(usd(2), floating); got.Cmp(usd(5000)) != 0 {
		t.Fatalf("floating usdValue = %s, want %s", got, usd(5000))
	}
	if got := usdValue(nil, pegged); got.Sign() != 0 {
		t.Fatalf("nil usdValue = %s, want 0", got)
	}
}

func TestAssetUnits(t *testing.T) {
	pegged := quote{price: big.NewInt(100_000_000), decimals: 8}
	roundPrice := big.NewInt(45_000_000_000_000_000) // 0.045 USD

	units, err := assetUnits(usd(100), pegged, roundPrice)
	if err != nil {
		t.Fatalf("assetUnits: %v", err)
	}
	want := bigFromString(t, "2222222222222222222222")
	if units.Cmp(want) != 0 {
		t.Fatalf("assetUnits = %s, want %s", units, want)
	}

	if _, err := assetUnits(usd(100), pegged, big.NewInt(0)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero round price error = %v, want ErrInvalidPrice", err)
	}
	units, err = assetUnits(nil, pegged, roundPrice)
	if err != nil || units.Sign() != 0 {
		t.Fatalf("nil adjusted = %s, %v", units, err)
	}
}
