package sale

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"novasale/core/events"
	"novasale/observability/metrics"
)

// AssetTransferor moves value out of the ledger's custody when referral
// rewards are claimed. Failures must be observable; the ledger never swallows
// a failed transfer.
type AssetTransferor interface {
	Transfer(asset string, to Address, amount *big.Int) error
}

// Ledger owns the sale aggregate: global sale state, the ordered round
// collection, participant contribution totals, the referral registry and
// reward balances. Every mutating operation stages its changes on a deep copy
// of the aggregate and commits the copy only on success, so a failure partway
// through leaves no partial update behind.
type Ledger struct {
	mu         sync.RWMutex
	state      *State
	emitter    events.Emitter
	store      *Store
	transferor AssetTransferor
	nowFn      func() int64
}

// NewLedger constructs a ledger with the supplied parameters.
func NewLedger(params *Params) (*Ledger, error) {
	normalized := params.Clone().Normalize()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		state:   NewState(normalized),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets to the no-op
// emitter.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetTransferor configures the external asset-transfer capability used by
// Claim.
func (l *Ledger) SetTransferor(transferor AssetTransferor) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.transferor = transferor
	l.mu.Unlock()
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if l == nil || now == nil {
		return
	}
	l.mu.Lock()
	l.nowFn = now
	l.mu.Unlock()
}

// AttachStore binds a persistence store. An existing snapshot replaces the
// in-memory aggregate; otherwise the current aggregate is written as the
// first snapshot.
func (l *Ledger) AttachStore(store *Store) error {
	if l == nil || store == nil {
		return fmt.Errorf("sale: nil ledger or store")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	loaded, ok, err := store.Load()
	if err != nil {
		return err
	}
	if ok {
		l.state = loaded
	} else if err := store.Save(l.state); err != nil {
		return err
	}
	l.store = store
	return nil
}

// mutate stages fn against a deep copy of the aggregate and commits the copy
// only when fn succeeds and the snapshot (if any) persists. Events collected
// by fn are emitted after the commit.
func (l *Ledger) mutate(fn func(s *State, emit func(events.Event)) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	staged := l.state.Clone()
	var pending []events.Event
	collect := func(evt events.Event) { pending = append(pending, evt) }
	if err := fn(staged, collect); err != nil {
		return err
	}
	if l.store != nil {
		if err := l.store.Save(staged); err != nil {
			return fmt.Errorf("sale: persist state: %w", err)
		}
	}
	l.state = staged
	for _, evt := range pending {
		l.emitter.Emit(evt)
	}
	return nil
}

// --- Sale lifecycle ---

// ActivateSale transitions the global sale from Reset to Started.
func (l *Ledger) ActivateSale() error {
	now := l.now()
	return l.mutate(func(s *State, emit func(events.Event)) error {
		if s.Sale != SaleReset {
			return ErrSaleAlreadyStarted
		}
		s.Sale = SaleStarted
		emit(events.SaleActivated{Timestamp: now})
		return nil
	})
}

// DeactivateSale transitions the global sale from Started to Ended. The sale
// never returns to Reset.
func (l *Ledger) DeactivateSale() error {
	now := l.now()
	return l.mutate(func(s *State, emit func(events.Event)) error {
		if s.Sale != SaleStarted {
			return ErrSaleNotActive
		}
		s.Sale = SaleEnded
		emit(events.SaleDeactivated{Timestamp: now})
		return nil
	})
}

// --- Round lifecycle ---

// ConfigureRound appends a new round in the Reset state and returns its index.
// Rounds may only be configured while the sale is active.
func (l *Ledger) ConfigureRound(price, supply *big.Int) (uint64, error) {
	var index uint64
	err := l.mutate(func(s *State, emit func(events.Event)) error {
		if s.Sale != SaleStarted {
			return ErrSaleNotActive
		}
		if price == nil || price.Sign() < 0 {
			return fmt.Errorf("%w: round price must not be negative", ErrInvalidPrice)
		}
		if supply == nil || supply.Sign() < 0 {
			return fmt.Errorf("sale: round supply must not be negative")
		}
		round := &Round{
			Defined: true,
			State:   RoundReset,
			Price:   new(big.Int).Set(price),
			Sold:    big.NewInt(0),
			Supply:  new(big.Int).Set(supply),
		}
		s.Rounds = append(s.Rounds, round)
		index = uint64(len(s.Rounds) - 1)
		emit(events.RoundConfigured{Index: index, Price: round.Price, Supply: round.Supply})
		return nil
	})
	return index, err
}

// AdjustRoundPrice updates the price of a round that has not started yet.
func (l *Ledger) AdjustRoundPrice(index uint64, price *big.Int) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		round, ok := s.round(index)
		if !ok {
			return ErrRoundNotFound
		}
		if round.State != RoundReset {
			return ErrRoundStarted
		}
		if price == nil || price.Sign() < 0 {
			return fmt.Errorf("%w: round price must not be negative", ErrInvalidPrice)
		}
		round.Price = new(big.Int).Set(price)
		emit(events.RoundUpdated{Index: index, Field: "price", Value: round.Price})
		return nil
	})
}

// AdjustRoundSupply updates the supply of a round that has not ended. The new
// supply may never fall below the amount already sold.
func (l *Ledger) AdjustRoundSupply(index uint64, supply *big.Int) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		round, ok := s.round(index)
		if !ok {
			return ErrRoundNotFound
		}
		if round.State == RoundEnded {
			return ErrRoundEnded
		}
		if supply == nil || supply.Sign() < 0 {
			return fmt.Errorf("sale: round supply must not be negative")
		}
		if supply.Cmp(round.Sold) < 0 {
			return fmt.Errorf("%w: supply %s < sold %s", ErrInsufficientRoundSupply, supply, round.Sold)
		}
		round.Supply = new(big.Int).Set(supply)
		emit(events.RoundUpdated{Index: index, Field: "supply", Value: round.Supply})
		return nil
	})
}

// StartRound makes the round at index the active round. If another round is
// still running it is force-ended first, preserving the at-most-one-active
// invariant.
func (l *Ledger) StartRound(index uint64) error {
	err := l.mutate(func(s *State, emit func(events.Event)) error {
		if s.Sale != SaleStarted {
			return ErrSaleNotActive
		}
		round, ok := s.round(index)
		if !ok {
			return ErrRoundNotFound
		}
		switch round.State {
		case RoundStarted:
			return ErrRoundStarted
		case RoundEnded:
			return ErrRoundEnded
		}
		if current, currentIdx, exists := s.current(); exists && current.State == RoundStarted {
			current.State = RoundEnded
			emit(events.RoundEnded{Index: currentIdx, Sold: new(big.Int).Set(current.Sold)})
		}
		round.State = RoundStarted
		s.CurrentRound = index
		s.HasCurrent = true
		emit(events.RoundStarted{Index: index, Price: new(big.Int).Set(round.Price)})
		return nil
	})
	if err == nil {
		metrics.Sale().SetActiveRound(index)
	}
	return err
}

// EndRound closes a running round. This works regardless of the global sale
// state so rounds can be wound down after deactivation.
func (l *Ledger) EndRound(index uint64) error {
	wasActive := false
	err := l.mutate(func(s *State, emit func(events.Event)) error {
		round, ok := s.round(index)
		if !ok {
			return ErrRoundNotFound
		}
		if round.State != RoundStarted {
			return ErrRoundNotStarted
		}
		round.State = RoundEnded
		wasActive = s.HasCurrent && s.CurrentRound == index
		emit(events.RoundEnded{Index: index, Sold: new(big.Int).Set(round.Sold)})
		return nil
	})
	if err == nil && wasActive {
		metrics.Sale().ClearActiveRound()
	}
	return err
}

// --- Purchase accounting ---

// getOrCreateReferral is the single insertion point for referral records so
// admin initialization and first-use auto-initialization share the same
// defaults: defined, enabled, seeded with the current global rates.
func getOrCreateReferral(s *State, addr Address) *Referral {
	if ref, ok := s.Referrals[addr]; ok && ref.Defined {
		return ref
	}
	ref := &Referral{
		Defined:       true,
		Enabled:       true,
		PrimaryRate:   s.Params.PrimaryRate,
		SecondaryRate: s.Params.SecondaryRate,
	}
	s.Referrals[addr] = ref
	return ref
}

// RecordPurchase is the single mutation entry point for a completed purchase,
// invoked by the purchase orchestrator. All effects apply atomically: buyer
// funds and balances, total sold, round sold, referral auto-initialization,
// reward accrual and the sticky referrer binding.
func (l *Ledger) RecordPurchase(user Address, asset string, usdAmount, units *big.Int, referrer Address, primaryReward, secondaryReward *big.Int) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		round, index, ok := s.current()
		if !ok || round.State != RoundStarted {
			return ErrRoundClosed
		}
		if units == nil || units.Sign() <= 0 {
			return fmt.Errorf("%w: asset units must be positive", ErrZeroAmount)
		}
		if usdAmount == nil || usdAmount.Sign() < 0 {
			return fmt.Errorf("%w: usd amount must not be negative", ErrZeroAmount)
		}
		newSold := new(big.Int).Add(round.Sold, units)
		if newSold.Cmp(round.Supply) > 0 {
			return fmt.Errorf("%w: sold %s + units %s > supply %s", ErrRoundAllocation, round.Sold, units, round.Supply)
		}

		funds := s.Funds[user]
		if funds == nil {
			funds = big.NewInt(0)
		}
		s.Funds[user] = new(big.Int).Add(funds, usdAmount)
		s.TotalSold = new(big.Int).Add(s.TotalSold, units)
		round.Sold = newSold
		balances := s.Balances[user]
		if balances == nil {
			balances = make(map[uint64]*big.Int)
			s.Balances[user] = balances
		}
		balance := balances[index]
		if balance == nil {
			balance = big.NewInt(0)
		}
		balances[index] = new(big.Int).Add(balance, units)

		if referrer != zeroAddress {
			getOrCreateReferral(s, referrer)
			if primaryReward != nil && primaryReward.Sign() > 0 {
				accrueReward(s, referrer, normalizeSymbol(asset), primaryReward)
			}
			if secondaryReward != nil && secondaryReward.Sign() > 0 {
				accrueReward(s, referrer, s.Params.SecondaryRewardAsset, secondaryReward)
			}
		}
		// The orchestrator resolves the sticky referrer before calling in, so
		// overwriting here is a no-op after the first purchase.
		s.ReferrerOf[user] = referrer
		return nil
	})
}

func accrueReward(s *State, referrer Address, asset string, amount *big.Int) {
	buckets := s.RewardBalances[referrer]
	if buckets == nil {
		buckets = make(map[string]*big.Int)
		s.RewardBalances[referrer] = buckets
	}
	balance := buckets[asset]
	if balance == nil {
		balance = big.NewInt(0)
	}
	buckets[asset] = new(big.Int).Add(balance, amount)
}

// AwardPoints credits Nova Points for a completed purchase: the buyer's own
// points, the referrer bonus, and (exactly once per user) the referrer's
// referral count. The operation performs no validation that can fail.
func (l *Ledger) AwardPoints(user, referrer Address, points, bonus *big.Int) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		if points != nil && points.Sign() > 0 {
			addPoints(s, user, points)
			emit(events.PointsAwarded{Address: user, Amount: new(big.Int).Set(points), Reason: "purchase"})
		}
		if referrer == zeroAddress {
			return nil
		}
		if bonus != nil && bonus.Sign() > 0 {
			addPoints(s, referrer, bonus)
			emit(events.PointsAwarded{Address: referrer, Amount: new(big.Int).Set(bonus), Reason: "referral"})
		}
		if !s.Referred[user] {
			s.Referred[user] = true
			s.ReferralCounts[referrer]++
			emit(events.ReferralRegistered{User: user, Referrer: referrer})
		}
		return nil
	})
}

func addPoints(s *State, addr Address, amount *big.Int) {
	existing := s.Points[addr]
	if existing == nil {
		existing = big.NewInt(0)
	}
	s.Points[addr] = new(big.Int).Add(existing, amount)
}

// --- Referral administration ---

// RegisterReferral explicitly initializes a referral account with the current
// global rates.
func (l *Ledger) RegisterReferral(addr Address) error {
	if addr == zeroAddress {
		return fmt.Errorf("sale: referral address required")
	}
	return l.mutate(func(s *State, emit func(events.Event)) error {
		if ref, ok := s.Referrals[addr]; ok && ref.Defined {
			return ErrReferralExists
		}
		getOrCreateReferral(s, addr)
		return nil
	})
}

// EnableReferral re-enables a disabled referral account. Enabling an already
// enabled account is rejected as a no-op transition.
func (l *Ledger) EnableReferral(addr Address) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		ref, ok := s.Referrals[addr]
		if !ok || !ref.Defined {
			return ErrReferralNotFound
		}
		if ref.Enabled {
			return ErrReferralEnabled
		}
		ref.Enabled = true
		emit(events.ReferralEnabled{Referrer: addr})
		return nil
	})
}

// DisableReferral disables an enabled referral account.
func (l *Ledger) DisableReferral(addr Address) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		ref, ok := s.Referrals[addr]
		if !ok || !ref.Defined {
			return ErrReferralNotFound
		}
		if !ref.Enabled {
			return ErrReferralDisabled
		}
		ref.Enabled = false
		emit(events.ReferralDisabled{Referrer: addr})
		return nil
	})
}

// SetGlobalRates updates the global referral commission rates. Their sum may
// never exceed the rate denominator.
func (l *Ledger) SetGlobalRates(primary, secondary uint32) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		if sum := uint64(primary) + uint64(secondary); sum > RateDenominator {
			return fmt.Errorf("%w: primary %d + secondary %d > %d", ErrRateOverflow, primary, secondary, RateDenominator)
		}
		s.Params.PrimaryRate = primary
		s.Params.SecondaryRate = secondary
		return nil
	})
}

// SetReferralRates overrides the commission rates of a single referral
// account.
func (l *Ledger) SetReferralRates(addr Address, primary, secondary uint32) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		ref, ok := s.Referrals[addr]
		if !ok || !ref.Defined {
			return ErrReferralNotFound
		}
		if primary > RateDenominator || secondary > RateDenominator {
			return fmt.Errorf("%w: rates must not exceed %d", ErrRateOverflow, RateDenominator)
		}
		ref.PrimaryRate = primary
		ref.SecondaryRate = secondary
		return nil
	})
}

// SetAuthorization flags a user as explicitly authorized for the full maximum
// allocation on the self-service path.
func (l *Ledger) SetAuthorization(user Address, authorized bool) error {
	return l.mutate(func(s *State, emit func(events.Event)) error {
		if authorized {
			s.Authorized[user] = true
		} else {
			delete(s.Authorized, user)
		}
		return nil
	})
}

// --- Claiming ---

// Payout is one asset bucket paid out by a claim.
type Payout struct {
	Asset  string
	Amount *big.Int
}

// Claim pays out the caller's accrued referral rewards for the listed assets
// and returns the set actually paid. Zero balances are skipped per asset; any
// failed transfer aborts the whole claim with no balance zeroed. The payout
// set is computed against a staged copy first, every transfer is attempted,
// and the zeroing commits only when all transfers succeeded.
func (l *Ledger) Claim(caller Address, assets []string) ([]Payout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ref, ok := l.state.Referrals[caller]
	if !ok || !ref.Defined {
		return nil, ErrReferralNotFound
	}
	if !ref.Enabled {
		return nil, ErrReferralDisabled
	}
	if len(assets) == 0 {
		return nil, ErrEmptyClaim
	}
	if l.transferor == nil {
		return nil, fmt.Errorf("%w: transferor not configured", ErrTransferFailed)
	}

	staged := l.state.Clone()
	var payouts []Payout
	buckets := staged.RewardBalances[caller]
	for _, raw := range assets {
		asset := normalizeSymbol(raw)
		if asset == "" {
			return nil, fmt.Errorf("sale: blank asset symbol in claim list")
		}
		balance := buckets[asset]
		if balance == nil || balance.Sign() == 0 {
			continue
		}
		payouts = append(payouts, Payout{Asset: asset, Amount: balance})
		buckets[asset] = big.NewInt(0)
	}
	if len(payouts) == 0 {
		return nil, nil
	}
	for _, p := range payouts {
		if err := l.transferor.Transfer(p.Asset, caller, new(big.Int).Set(p.Amount)); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTransferFailed, p.Asset, err)
		}
	}
	if l.store != nil {
		if err := l.store.Save(staged); err != nil {
			return nil, fmt.Errorf("sale: persist state: %w", err)
		}
	}
	l.state = staged
	for i := range payouts {
		payouts[i].Amount = new(big.Int).Set(payouts[i].Amount)
		l.emitter.Emit(events.ReferralRewardClaimed{Referrer: caller, Asset: payouts[i].Asset, Amount: payouts[i].Amount})
	}
	return payouts, nil
}

// --- Queries ---

// SaleStatus returns the global sale lifecycle state.
func (l *Ledger) SaleStatus() SaleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Sale
}

// CurrentRound returns the round the current-round pointer designates.
func (l *Ledger) CurrentRound() (*Round, uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	round, index, ok := l.state.current()
	if !ok {
		return nil, 0, false
	}
	return round.Clone(), index, true
}

// RoundAt returns the round at the given index.
func (l *Ledger) RoundAt(index uint64) (*Round, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	round, ok := l.state.round(index)
	if !ok {
		return nil, ErrRoundNotFound
	}
	return round.Clone(), nil
}

// RoundCount returns the number of configured rounds.
func (l *Ledger) RoundCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.state.Rounds))
}

// TotalSold returns the cumulative asset units sold across all rounds.
func (l *Ledger) TotalSold() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.state.TotalSold)
}

// BalanceOf returns the asset units the user purchased in the given round.
func (l *Ledger) BalanceOf(user Address, round uint64) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if balances, ok := l.state.Balances[user]; ok {
		if balance, ok := balances[round]; ok {
			return new(big.Int).Set(balance)
		}
	}
	return big.NewInt(0)
}

// FundsOf returns the user's cumulative contribution in the USD accounting
// unit.
func (l *Ledger) FundsOf(user Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if funds, ok := l.state.Funds[user]; ok {
		return new(big.Int).Set(funds)
	}
	return big.NewInt(0)
}

// RewardBalanceOf returns the referrer's unclaimed reward balance in the given
// asset.
func (l *Ledger) RewardBalanceOf(referrer Address, asset string) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if buckets, ok := l.state.RewardBalances[referrer]; ok {
		if balance, ok := buckets[normalizeSymbol(asset)]; ok {
			return new(big.Int).Set(balance)
		}
	}
	return big.NewInt(0)
}

// PointsOf returns the accrued Nova Points of the address.
func (l *Ledger) PointsOf(addr Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if points, ok := l.state.Points[addr]; ok {
		return new(big.Int).Set(points)
	}
	return big.NewInt(0)
}

// ReferralCountOf returns how many users the referrer has been credited for.
func (l *Ledger) ReferralCountOf(referrer Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.ReferralCounts[referrer]
}

// ReferralOf returns the referral record for the address.
func (l *Ledger) ReferralOf(addr Address) (*Referral, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ref, ok := l.state.Referrals[addr]
	if !ok || !ref.Defined {
		return nil, false
	}
	return ref.Clone(), true
}

// ReferrerOf returns the user's bound referrer, if any purchase fixed one.
func (l *Ledger) ReferrerOf(user Address) (Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bound, ok := l.state.ReferrerOf[user]
	return bound, ok
}

// ResolveReferrer applies the referrer resolution rule: the bound referrer
// wins once fixed; a brand-new (undefined) candidate is accepted for later
// auto-initialization; a defined-but-disabled candidate resolves to none.
func (l *Ledger) ResolveReferrer(user Address, supplied Address) Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.resolveReferrer(user, supplied)
}

func (s *State) resolveReferrer(user Address, supplied Address) Address {
	candidate := supplied
	if bound, ok := s.ReferrerOf[user]; ok {
		candidate = bound
	}
	if candidate == zeroAddress {
		return zeroAddress
	}
	ref, ok := s.Referrals[candidate]
	if !ok || !ref.Defined {
		return candidate
	}
	if ref.Enabled {
		return candidate
	}
	return zeroAddress
}

// GlobalRates returns the current global primary and secondary rates.
func (l *Ledger) GlobalRates() (uint32, uint32) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Params.PrimaryRate, l.state.Params.SecondaryRate
}

// EffectiveRatesOf returns the rates that apply to the referrer: the greater
// of the account override and the current global rate, per component. An
// undefined referrer receives the global rates (matching the defaults it
// would be auto-initialized with).
func (l *Ledger) EffectiveRatesOf(referrer Address) (uint32, uint32) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	params := l.state.Params
	ref, ok := l.state.Referrals[referrer]
	if !ok || !ref.Defined {
		return params.PrimaryRate, params.SecondaryRate
	}
	return effectiveRate(ref.PrimaryRate, params.PrimaryRate),
		effectiveRate(ref.SecondaryRate, params.SecondaryRate)
}

// LimitOf returns the user's remaining self-service allocation: the full
// maximum when explicitly authorized, the auto-authorization threshold
// otherwise.
func (l *Ledger) LimitOf(user Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ceiling := l.state.Params.AuthThreshold
	if l.state.Authorized[user] {
		ceiling = l.state.Params.MaxAllocation
	}
	return remainingAllocation(l.state, user, ceiling)
}

// MaxLimitOf returns the user's remaining allocation against the global
// maximum, used on the agent-initiated path.
func (l *Ledger) MaxLimitOf(user Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return remainingAllocation(l.state, user, l.state.Params.MaxAllocation)
}

func remainingAllocation(s *State, user Address, ceiling *big.Int) *big.Int {
	if ceiling == nil {
		return big.NewInt(0)
	}
	funds := s.Funds[user]
	if funds == nil {
		funds = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(ceiling, funds)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// IsAuthorized reports whether the user has been explicitly authorized for
// the full maximum allocation.
func (l *Ledger) IsAuthorized(user Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Authorized[user]
}

// Parameters returns a copy of the current global parameters.
func (l *Ledger) Parameters() *Params {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Params.Clone()
}

func (l *Ledger) now() int64 {
	l.mu.RLock()
	nowFn := l.nowFn
	l.mu.RUnlock()
	return nowFn()
}
