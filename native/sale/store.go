package sale

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"novasale/storage"
)

var stateKey = []byte("sale/state")

// Store persists snapshots of the sale aggregate in a key-value backend. Maps
// are flattened into sorted entry slices so encoding stays deterministic, and
// big integers travel as decimal strings.
type Store struct {
	db storage.Database
}

// NewStore constructs a store bound to the provided backend.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

type storedParams struct {
	MinPurchase          string
	MaxAllocation        string
	AuthThreshold        string
	PrimaryRate          uint32
	SecondaryRate        uint32
	SecondaryRewardAsset string
}

type storedRound struct {
	Defined bool
	State   uint8
	Price   string
	Sold    string
	Supply  string
}

type storedAmount struct {
	Addr   Address
	Amount string
}

type storedRoundBalance struct {
	Addr   Address
	Round  uint64
	Amount string
}

type storedReferral struct {
	Addr          Address
	Enabled       bool
	PrimaryRate   uint32
	SecondaryRate uint32
}

type storedBinding struct {
	User     Address
	Referrer Address
}

type storedCount struct {
	Addr  Address
	Count uint64
}

type storedReward struct {
	Addr   Address
	Asset  string
	Amount string
}

type storedState struct {
	Sale         uint8
	CurrentRound uint64
	HasCurrent   bool
	TotalSold    string
	Params       storedParams
	Rounds       []storedRound
	Funds        []storedAmount
	Balances     []storedRoundBalance
	Referrals    []storedReferral
	Bindings     []storedBinding
	Referred     []Address
	Counts       []storedCount
	Rewards      []storedReward
	Points       []storedAmount
	Authorized   []Address
}

// Save writes the aggregate snapshot.
func (st *Store) Save(s *State) error {
	if st == nil || st.db == nil {
		return fmt.Errorf("sale: store not initialised")
	}
	if s == nil {
		return fmt.Errorf("sale: nil state")
	}
	encoded, err := rlp.EncodeToBytes(toStoredState(s))
	if err != nil {
		return err
	}
	return st.db.Put(stateKey, encoded)
}

// Load reads the last snapshot, reporting false when none has been written.
func (st *Store) Load() (*State, bool, error) {
	if st == nil || st.db == nil {
		return nil, false, fmt.Errorf("sale: store not initialised")
	}
	raw, err := st.db.Get(stateKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var stored storedState
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, err
	}
	state, err := fromStoredState(&stored)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

func toStoredState(s *State) *storedState {
	stored := &storedState{
		Sale:         uint8(s.Sale),
		CurrentRound: s.CurrentRound,
		HasCurrent:   s.HasCurrent,
		TotalSold:    amountString(s.TotalSold),
		Params: storedParams{
			MinPurchase:          amountString(s.Params.MinPurchase),
			MaxAllocation:        amountString(s.Params.MaxAllocation),
			AuthThreshold:        amountString(s.Params.AuthThreshold),
			PrimaryRate:          s.Params.PrimaryRate,
			SecondaryRate:        s.Params.SecondaryRate,
			SecondaryRewardAsset: s.Params.SecondaryRewardAsset,
		},
	}
	for _, round := range s.Rounds {
		stored.Rounds = append(stored.Rounds, storedRound{
			Defined: round.Defined,
			State:   uint8(round.State),
			Price:   amountString(round.Price),
			Sold:    amountString(round.Sold),
			Supply:  amountString(round.Supply),
		})
	}
	for addr, amount := range s.Funds {
		stored.Funds = append(stored.Funds, storedAmount{Addr: addr, Amount: amountString(amount)})
	}
	sortAmounts(stored.Funds)
	for addr, rounds := range s.Balances {
		for index, amount := range rounds {
			stored.Balances = append(stored.Balances, storedRoundBalance{Addr: addr, Round: index, Amount: amountString(amount)})
		}
	}
	sort.Slice(stored.Balances, func(i, j int) bool {
		if cmp := bytes.Compare(stored.Balances[i].Addr[:], stored.Balances[j].Addr[:]); cmp != 0 {
			return cmp < 0
		}
		return stored.Balances[i].Round < stored.Balances[j].Round
	})
	for addr, ref := range s.Referrals {
		if !ref.Defined {
			continue
		}
		stored.Referrals = append(stored.Referrals, storedReferral{
			Addr:          addr,
			Enabled:       ref.Enabled,
			PrimaryRate:   ref.PrimaryRate,
			SecondaryRate: ref.SecondaryRate,
		})
	}
	sort.Slice(stored.Referrals, func(i, j int) bool {
		return bytes.Compare(stored.Referrals[i].Addr[:], stored.Referrals[j].Addr[:]) < 0
	})
	for user, referrer := range s.ReferrerOf {
		stored.Bindings = append(stored.Bindings, storedBinding{User: user, Referrer: referrer})
	}
	sort.Slice(stored.Bindings, func(i, j int) bool {
		return bytes.Compare(stored.Bindings[i].User[:], stored.Bindings[j].User[:]) < 0
	})
	for user, counted := range s.Referred {
		if counted {
			stored.Referred = append(stored.Referred, user)
		}
	}
	sortAddresses(stored.Referred)
	for addr, count := range s.ReferralCounts {
		stored.Counts = append(stored.Counts, storedCount{Addr: addr, Count: count})
	}
	sort.Slice(stored.Counts, func(i, j int) bool {
		return bytes.Compare(stored.Counts[i].Addr[:], stored.Counts[j].Addr[:]) < 0
	})
	for addr, buckets := range s.RewardBalances {
		for asset, amount := range buckets {
			stored.Rewards = append(stored.Rewards, storedReward{Addr: addr, Asset: asset, Amount: amountString(amount)})
		}
	}
	sort.Slice(stored.Rewards, func(i, j int) bool {
		if cmp := bytes.Compare(stored.Rewards[i].Addr[:], stored.Rewards[j].Addr[:]); cmp != 0 {
			return cmp < 0
		}
		return stored.Rewards[i].Asset < stored.Rewards[j].Asset
	})
	for addr, points := range s.Points {
		stored.Points = append(stored.Points, storedAmount{Addr: addr, Amount: amountString(points)})
	}
	sortAmounts(stored.Points)
	for addr, ok := range s.Authorized {
		if ok {
			stored.Authorized = append(stored.Authorized, addr)
		}
	}
	sortAddresses(stored.Authorized)
	return stored
}

func fromStoredState(stored *storedState) (*State, error) {
	params := &Params{
		PrimaryRate:          stored.Params.PrimaryRate,
		SecondaryRate:        stored.Params.SecondaryRate,
		SecondaryRewardAsset: stored.Params.SecondaryRewardAsset,
	}
	var err error
	if params.MinPurchase, err = parseAmount(stored.Params.MinPurchase); err != nil {
		return nil, err
	}
	if params.MaxAllocation, err = parseAmount(stored.Params.MaxAllocation); err != nil {
		return nil, err
	}
	if params.AuthThreshold, err = parseAmount(stored.Params.AuthThreshold); err != nil {
		return nil, err
	}
	state := NewState(params)
	state.Sale = SaleState(stored.Sale)
	state.CurrentRound = stored.CurrentRound
	state.HasCurrent = stored.HasCurrent
	if state.TotalSold, err = parseAmount(stored.TotalSold); err != nil {
		return nil, err
	}
	for _, round := range stored.Rounds {
		parsed := &Round{Defined: round.Defined, State: RoundState(round.State)}
		if parsed.Price, err = parseAmount(round.Price); err != nil {
			return nil, err
		}
		if parsed.Sold, err = parseAmount(round.Sold); err != nil {
			return nil, err
		}
		if parsed.Supply, err = parseAmount(round.Supply); err != nil {
			return nil, err
		}
		state.Rounds = append(state.Rounds, parsed)
	}
	for _, entry := range stored.Funds {
		if state.Funds[entry.Addr], err = parseAmount(entry.Amount); err != nil {
			return nil, err
		}
	}
	for _, entry := range stored.Balances {
		inner := state.Balances[entry.Addr]
		if inner == nil {
			inner = make(map[uint64]*big.Int)
			state.Balances[entry.Addr] = inner
		}
		if inner[entry.Round], err = parseAmount(entry.Amount); err != nil {
			return nil, err
		}
	}
	for _, entry := range stored.Referrals {
		state.Referrals[entry.Addr] = &Referral{
			Defined:       true,
			Enabled:       entry.Enabled,
			PrimaryRate:   entry.PrimaryRate,
			SecondaryRate: entry.SecondaryRate,
		}
	}
	for _, entry := range stored.Bindings {
		state.ReferrerOf[entry.User] = entry.Referrer
	}
	for _, user := range stored.Referred {
		state.Referred[user] = true
	}
	for _, entry := range stored.Counts {
		state.ReferralCounts[entry.Addr] = entry.Count
	}
	for _, entry := range stored.Rewards {
		buckets := state.RewardBalances[entry.Addr]
		if buckets == nil {
			buckets = make(map[string]*big.Int)
			state.RewardBalances[entry.Addr] = buckets
		}
		if buckets[entry.Asset], err = parseAmount(entry.Amount); err != nil {
			return nil, err
		}
	}
	for _, entry := range stored.Points {
		if state.Points[entry.Addr], err = parseAmount(entry.Amount); err != nil {
			return nil, err
		}
	}
	for _, addr := range stored.Authorized {
		state.Authorized[addr] = true
	}
	return state, nil
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("sale: invalid stored amount %q", raw)
	}
	return amount, nil
}

func sortAmounts(entries []storedAmount) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Addr[:], entries[j].Addr[:]) < 0
	})
}

func sortAddresses(entries []Address) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i][:], entries[j][:]) < 0
	})
}
