package sale

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"novasale/core/events"
	"novasale/observability/metrics"
)

// FundsCollector moves the tendered funds out of the buyer in a single
// external call, splitting them between the treasury and the ledger's custody
// account (the portion backing referral reward accounting).
type FundsCollector interface {
	Collect(asset string, from, treasury Address, treasuryAmount *big.Int, custody Address, custodyAmount *big.Int) error
}

// Engine is the purchase orchestrator: it validates an incoming purchase,
// converts the tendered amount into the USD accounting unit and into asset
// units at the current round price, resolves the referral chain, computes
// Nova Points, triggers the funds transfer and commits the result to the
// ledger.
type Engine struct {
	mu         sync.Mutex
	ledger     *Ledger
	currencies CurrencyRegistry
	collector  FundsCollector
	emitter    events.Emitter

	treasury     Address
	custody      Address
	nativeSymbol string
	priceMaxAge  time.Duration
	nowFn        func() time.Time
}

// NewEngine wires the orchestrator to the ledger and currency whitelist.
func NewEngine(ledger *Ledger, currencies CurrencyRegistry) *Engine {
	return &Engine{
		ledger:       ledger,
		currencies:   currencies,
		emitter:      events.NoopEmitter{},
		nativeSymbol: "ETH",
		nowFn:        time.Now,
	}
}

// SetCollector configures the external funds-transfer capability.
func (e *Engine) SetCollector(collector FundsCollector) { e.collector = collector }

// SetEmitter configures the event emitter. Passing nil resets to no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTreasury configures the account receiving the net purchase proceeds.
func (e *Engine) SetTreasury(addr Address) { e.treasury = addr }

// SetCustody configures the account backing referral reward balances.
func (e *Engine) SetCustody(addr Address) { e.custody = addr }

// SetNativeSymbol names the native pseudo-asset; purchases in it must carry a
// matching attached value.
func (e *Engine) SetNativeSymbol(symbol string) {
	if normalized := normalizeSymbol(symbol); normalized != "" {
		e.nativeSymbol = normalized
	}
}

// SetPriceMaxAge configures the staleness threshold applied to floating
// currency quotes. Zero disables the check.
func (e *Engine) SetPriceMaxAge(maxAge time.Duration) {
	if maxAge < 0 {
		maxAge = 0
	}
	e.priceMaxAge = maxAge
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// Ledger exposes the ledger the engine commits to.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Purchase executes a self-service purchase: the buyer acts for themselves and
// is capped by the auto-authorization threshold unless explicitly authorized.
func (e *Engine) Purchase(user, suppliedReferrer Address, asset string, amount, attachedValue *big.Int) (*PurchaseReceipt, error) {
	return e.execute(user, suppliedReferrer, asset, amount, attachedValue, false)
}

// PurchaseFor executes a purchase initiated by an authorized agent on behalf
// of the user; the full maximum allocation applies.
func (e *Engine) PurchaseFor(user, suppliedReferrer Address, asset string, amount, attachedValue *big.Int) (*PurchaseReceipt, error) {
	return e.execute(user, suppliedReferrer, asset, amount, attachedValue, true)
}

func (e *Engine) execute(user, suppliedReferrer Address, asset string, amount, attachedValue *big.Int, agentInitiated bool) (*PurchaseReceipt, error) {
	receipt, err := e.run(user, suppliedReferrer, asset, amount, attachedValue, agentInitiated)
	if err != nil {
		metrics.Sale().PurchaseRejected(rejectionReason(err))
		return nil, err
	}
	metrics.Sale().PurchaseAccepted(receipt.Asset, receipt.USDAmount)
	return receipt, nil
}

// run holds the engine mutex for the whole purchase so the limit and
// allocation checks, the external collect and the ledger commit form one
// serialized operation.
func (e *Engine) run(user, suppliedReferrer Address, asset string, amount, attachedValue *big.Int, agentInitiated bool) (*PurchaseReceipt, error) {
	if e == nil || e.ledger == nil {
		return nil, fmt.Errorf("sale: engine not configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if user == zeroAddress {
		return nil, fmt.Errorf("sale: user address required")
	}
	if suppliedReferrer != zeroAddress && suppliedReferrer == user {
		return nil, ErrSelfReferral
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if e.ledger.SaleStatus() != SaleStarted {
		return nil, ErrSaleNotActive
	}
	symbol := normalizeSymbol(asset)
	if err := e.checkAttachedValue(symbol, amount, attachedValue); err != nil {
		return nil, err
	}

	round, roundIndex, ok := e.ledger.CurrentRound()
	if !ok || round.State != RoundStarted {
		return nil, ErrRoundClosed
	}

	currency, ok := e.currencies.Currency(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, symbol)
	}
	q, err := resolveQuote(currency, e.priceMaxAge, e.nowFn())
	if err != nil {
		return nil, err
	}

	adjusted := adjustDecimals(amount, currency.Decimals)
	units, err := assetUnits(adjusted, q, round.Price)
	if err != nil {
		return nil, err
	}
	if units.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if projected := new(big.Int).Add(round.Sold, units); projected.Cmp(round.Supply) > 0 {
		return nil, fmt.Errorf("%w: requested %s, remaining %s", ErrRoundAllocation, units, round.Remaining())
	}

	usdAmount := usdValue(adjusted, q)
	params := e.ledger.Parameters()
	if usdAmount.Cmp(params.MinPurchase) < 0 {
		return nil, fmt.Errorf("%w: %s < %s", ErrBelowMinimum, usdAmount, params.MinPurchase)
	}
	limit := e.ledger.LimitOf(user)
	if agentInitiated {
		limit = e.ledger.MaxLimitOf(user)
	}
	if usdAmount.Cmp(limit) > 0 {
		return nil, fmt.Errorf("%w: %s > remaining %s", ErrAboveMaximum, usdAmount, limit)
	}

	// The first accepted purchase permanently fixes the referrer; later
	// purchases ignore the supplied argument.
	sticky := suppliedReferrer
	if bound, hasBound := e.ledger.ReferrerOf(user); hasBound {
		sticky = bound
	}
	effective := e.ledger.ResolveReferrer(user, suppliedReferrer)

	primaryReward := big.NewInt(0)
	secondaryReward := big.NewInt(0)
	if effective != zeroAddress {
		primaryRate, secondaryRate := e.ledger.EffectiveRatesOf(effective)
		primaryReward = commission(amount, primaryRate)
		secondaryRaw := commission(amount, secondaryRate)
		if secondaryRaw.Sign() > 0 {
			secondaryReward, err = assetUnits(adjustDecimals(secondaryRaw, currency.Decimals), q, round.Price)
			if err != nil {
				return nil, err
			}
		}
	}

	if e.collector == nil {
		return nil, fmt.Errorf("%w: collector not configured", ErrTransferFailed)
	}
	treasuryAmount := new(big.Int).Sub(amount, primaryReward)
	if err := e.collector.Collect(symbol, user, e.treasury, treasuryAmount, e.custody, primaryReward); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	if err := e.ledger.RecordPurchase(user, symbol, usdAmount, units, sticky, primaryReward, secondaryReward); err != nil {
		return nil, err
	}

	points := PointsForUSD(usdAmount)
	bonus := big.NewInt(0)
	if effective != zeroAddress {
		bonus = ReferrerBonus(points)
	}
	if err := e.ledger.AwardPoints(user, effective, points, bonus); err != nil {
		return nil, err
	}
	if err := e.currencies.AddCollected(symbol, amount); err != nil {
		return nil, err
	}

	metrics.Sale().PointsIssued(points)
	metrics.Sale().PointsIssued(bonus)
	if primaryReward.Sign() > 0 {
		metrics.Sale().RewardAccrued(symbol)
	}
	if secondaryReward.Sign() > 0 {
		metrics.Sale().RewardAccrued(params.SecondaryRewardAsset)
	}

	receipt := &PurchaseReceipt{
		User:            user,
		Referrer:        effective,
		Asset:           symbol,
		Amount:          new(big.Int).Set(amount),
		USDAmount:       usdAmount,
		AssetUnits:      units,
		RoundIndex:      roundIndex,
		RoundPrice:      new(big.Int).Set(round.Price),
		AssetPrice:      new(big.Int).Set(q.price),
		Points:          points,
		ReferrerPoints:  bonus,
		PrimaryReward:   primaryReward,
		SecondaryReward: secondaryReward,
	}
	e.emitter.Emit(events.PurchaseCompleted{
		User:       receipt.User,
		Referrer:   receipt.Referrer,
		Asset:      receipt.Asset,
		Amount:     receipt.Amount,
		RoundPrice: receipt.RoundPrice,
		AssetUnits: receipt.AssetUnits,
		RoundIndex: receipt.RoundIndex,
		USDAmount:  receipt.USDAmount,
		AssetPrice: receipt.AssetPrice,
		Points:     receipt.Points,
	})
	return receipt, nil
}

// checkAttachedValue enforces payment-shape consistency: native purchases must
// attach exactly the tendered amount, token purchases must attach nothing.
func (e *Engine) checkAttachedValue(symbol string, amount, attachedValue *big.Int) error {
	attached := attachedValue
	if attached == nil {
		attached = big.NewInt(0)
	}
	if symbol == e.nativeSymbol {
		if attached.Cmp(amount) != 0 {
			return fmt.Errorf("%w: attached %s, tendered %s", ErrValueMismatch, attached, amount)
		}
		return nil
	}
	if attached.Sign() > 0 {
		return fmt.Errorf("%w: %s attached to %s purchase", ErrUnexpectedValue, attached, symbol)
	}
	return nil
}

// commission computes amount * rate / 1000 in the tendered asset's raw units.
func commission(amount *big.Int, rate uint32) *big.Int {
	if amount == nil || rate == 0 {
		return big.NewInt(0)
	}
	reward := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(rate)))
	return reward.Quo(reward, big.NewInt(RateDenominator))
}

func rejectionReason(err error) string {
	switch {
	case isAny(err, ErrSaleNotActive, ErrSaleAlreadyStarted, ErrRoundClosed, ErrRoundNotStarted, ErrRoundEnded):
		return "state"
	case isAny(err, ErrBelowMinimum, ErrAboveMaximum, ErrRoundAllocation, ErrRateOverflow):
		return "bounds"
	case isAny(err, ErrPriceStale, ErrInvalidPrice):
		return "price"
	case isAny(err, ErrTransferFailed):
		return "transfer"
	default:
		return "input"
	}
}
