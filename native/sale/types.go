package sale

import "math/big"

// SaleState tracks the global sale lifecycle. Transitions are monotonic:
// Reset -> Started -> Ended, never backwards.
type SaleState uint8

const (
	SaleReset SaleState = iota
	SaleStarted
	SaleEnded
)

func (s SaleState) String() string {
	switch s {
	case SaleReset:
		return "reset"
	case SaleStarted:
		return "started"
	case SaleEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// RoundState tracks the lifecycle of a single round.
type RoundState uint8

const (
	RoundReset RoundState = iota
	RoundStarted
	RoundEnded
)

func (s RoundState) String() string {
	switch s {
	case RoundReset:
		return "reset"
	case RoundStarted:
		return "started"
	case RoundEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Round is a priced, capped tranche of the sale. Price is denominated in the
// USD accounting unit with 18 decimals; Sold and Supply are asset units.
type Round struct {
	Defined bool
	State   RoundState
	Price   *big.Int
	Sold    *big.Int
	Supply  *big.Int
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	clone := &Round{Defined: r.Defined, State: r.State}
	if r.Price != nil {
		clone.Price = new(big.Int).Set(r.Price)
	}
	if r.Sold != nil {
		clone.Sold = new(big.Int).Set(r.Sold)
	}
	if r.Supply != nil {
		clone.Supply = new(big.Int).Set(r.Supply)
	}
	return clone
}

// Remaining reports how many asset units the round can still sell.
func (r *Round) Remaining() *big.Int {
	if r == nil || r.Supply == nil {
		return big.NewInt(0)
	}
	sold := r.Sold
	if sold == nil {
		sold = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(r.Supply, sold)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// Referral tracks a referrer account together with its commission overrides.
// Rates are expressed in tenths of a percent (1000 = 100%).
type Referral struct {
	Defined       bool
	Enabled       bool
	PrimaryRate   uint32
	SecondaryRate uint32
}

// Clone returns a copy of the referral record.
func (r *Referral) Clone() *Referral {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Address is a raw 20-byte account identifier.
type Address = [20]byte

var zeroAddress Address

// State is the sale aggregate: every mutable piece of sale, round, participant
// and referral bookkeeping lives here so mutations can be staged on a deep
// copy and committed atomically.
type State struct {
	Sale         SaleState
	Params       *Params
	Rounds       []*Round
	CurrentRound uint64
	HasCurrent   bool
	TotalSold    *big.Int

	Funds          map[Address]*big.Int
	Balances       map[Address]map[uint64]*big.Int
	Referrals      map[Address]*Referral
	ReferrerOf     map[Address]Address
	Referred       map[Address]bool
	ReferralCounts map[Address]uint64
	RewardBalances map[Address]map[string]*big.Int
	Points         map[Address]*big.Int
	Authorized     map[Address]bool
}

// NewState constructs an empty aggregate with the supplied parameters.
func NewState(params *Params) *State {
	return &State{
		Sale:           SaleReset,
		Params:         params.Clone().Normalize(),
		TotalSold:      big.NewInt(0),
		Funds:          make(map[Address]*big.Int),
		Balances:       make(map[Address]map[uint64]*big.Int),
		Referrals:      make(map[Address]*Referral),
		ReferrerOf:     make(map[Address]Address),
		Referred:       make(map[Address]bool),
		ReferralCounts: make(map[Address]uint64),
		RewardBalances: make(map[Address]map[string]*big.Int),
		Points:         make(map[Address]*big.Int),
		Authorized:     make(map[Address]bool),
	}
}

// Clone produces a deep copy of the aggregate.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := &State{
		Sale:           s.Sale,
		Params:         s.Params.Clone(),
		CurrentRound:   s.CurrentRound,
		HasCurrent:     s.HasCurrent,
		TotalSold:      big.NewInt(0),
		Rounds:         make([]*Round, len(s.Rounds)),
		Funds:          make(map[Address]*big.Int, len(s.Funds)),
		Balances:       make(map[Address]map[uint64]*big.Int, len(s.Balances)),
		Referrals:      make(map[Address]*Referral, len(s.Referrals)),
		ReferrerOf:     make(map[Address]Address, len(s.ReferrerOf)),
		Referred:       make(map[Address]bool, len(s.Referred)),
		ReferralCounts: make(map[Address]uint64, len(s.ReferralCounts)),
		RewardBalances: make(map[Address]map[string]*big.Int, len(s.RewardBalances)),
		Points:         make(map[Address]*big.Int, len(s.Points)),
		Authorized:     make(map[Address]bool, len(s.Authorized)),
	}
	if s.TotalSold != nil {
		clone.TotalSold = new(big.Int).Set(s.TotalSold)
	}
	for i, round := range s.Rounds {
		clone.Rounds[i] = round.Clone()
	}
	for addr, amount := range s.Funds {
		clone.Funds[addr] = new(big.Int).Set(amount)
	}
	for addr, rounds := range s.Balances {
		inner := make(map[uint64]*big.Int, len(rounds))
		for idx, amount := range rounds {
			inner[idx] = new(big.Int).Set(amount)
		}
		clone.Balances[addr] = inner
	}
	for addr, ref := range s.Referrals {
		clone.Referrals[addr] = ref.Clone()
	}
	for user, ref := range s.ReferrerOf {
		clone.ReferrerOf[user] = ref
	}
	for user, counted := range s.Referred {
		clone.Referred[user] = counted
	}
	for addr, count := range s.ReferralCounts {
		clone.ReferralCounts[addr] = count
	}
	for addr, assets := range s.RewardBalances {
		inner := make(map[string]*big.Int, len(assets))
		for asset, amount := range assets {
			inner[asset] = new(big.Int).Set(amount)
		}
		clone.RewardBalances[addr] = inner
	}
	for addr, points := range s.Points {
		clone.Points[addr] = new(big.Int).Set(points)
	}
	for addr, ok := range s.Authorized {
		clone.Authorized[addr] = ok
	}
	return clone
}

func (s *State) round(index uint64) (*Round, bool) {
	if s == nil || index >= uint64(len(s.Rounds)) {
		return nil, false
	}
	round := s.Rounds[index]
	if round == nil || !round.Defined {
		return nil, false
	}
	return round, true
}

func (s *State) current() (*Round, uint64, bool) {
	if s == nil || !s.HasCurrent {
		return nil, 0, false
	}
	round, ok := s.round(s.CurrentRound)
	if !ok {
		return nil, 0, false
	}
	return round, s.CurrentRound, true
}

// PurchaseReceipt summarises the accounting effect of one accepted purchase.
type PurchaseReceipt struct {
	User            Address
	Referrer        Address
	Asset           string
	Amount          *big.Int
	USDAmount       *big.Int
	AssetUnits      *big.Int
	RoundIndex      uint64
	RoundPrice      *big.Int
	AssetPrice      *big.Int
	Points          *big.Int
	ReferrerPoints  *big.Int
	PrimaryReward   *big.Int
	SecondaryReward *big.Int
}
