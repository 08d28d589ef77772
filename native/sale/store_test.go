package sale

import (
	"math/big"
	"testing"

	"novasale/storage"
)

func TestStoreLoadEmpty(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	state, ok, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok || state != nil {
		t.Fatalf("Load on empty backend = %v, %v", state, ok)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	state := NewState(testParams())
	state.Sale = SaleStarted
	state.HasCurrent = true
	state.CurrentRound = 1
	state.TotalSold = usd(3000)
	state.Rounds = append(state.Rounds,
		&Round{Defined: true, State: RoundEnded, Price: usd(1), Sold: usd(1000), Supply: usd(1000)},
		&Round{Defined: true, State: RoundStarted, Price: usd(2), Sold: usd(2000), Supply: usd(5000)},
	)
	user := testAddr(0x01)
	referrer := testAddr(0x02)
	disabled := testAddr(0x03)
	state.Funds[user] = usd(150)
	state.Balances[user] = map[uint64]*big.Int{0: usd(1000), 1: usd(2000)}
	state.Referrals[referrer] = &Referral{Defined: true, Enabled: true, PrimaryRate: 150, SecondaryRate: 50}
	state.Referrals[disabled] = &Referral{Defined: true, Enabled: false}
	state.ReferrerOf[user] = referrer
	state.Referred[user] = true
	state.ReferralCounts[referrer] = 1
	state.RewardBalances[referrer] = map[string]*big.Int{"USDT": big.NewInt(15), "NOVA": usd(111)}
	state.Points[user] = big.NewInt(600)
	state.Authorized[user] = true

	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load: %v, %v", ok, err)
	}

	if loaded.Sale != SaleStarted || !loaded.HasCurrent || loaded.CurrentRound != 1 {
		t.Fatalf("loaded header = %+v", loaded)
	}
	if loaded.TotalSold.Cmp(usd(3000)) != 0 {
		t.Fatalf("loaded total sold = %s", loaded.TotalSold)
	}
	if len(loaded.Rounds) != 2 || loaded.Rounds[0].State != RoundEnded || loaded.Rounds[1].Price.Cmp(usd(2)) != 0 {
		t.Fatalf("loaded rounds = %+v", loaded.Rounds)
	}
	if loaded.Funds[user].Cmp(usd(150)) != 0 {
		t.Fatalf("loaded funds = %s", loaded.Funds[user])
	}
	if loaded.Balances[user][1].Cmp(usd(2000)) != 0 {
		t.Fatalf("loaded balances = %+v", loaded.Balances[user])
	}
	ref := loaded.Referrals[referrer]
	if ref == nil || !ref.Enabled || ref.PrimaryRate != 150 || ref.SecondaryRate != 50 {
		t.Fatalf("loaded referral = %+v", ref)
	}
	if got := loaded.Referrals[disabled]; got == nil || got.Enabled {
		t.Fatalf("loaded disabled referral = %+v", got)
	}
	if loaded.ReferrerOf[user] != referrer || !loaded.Referred[user] || loaded.ReferralCounts[referrer] != 1 {
		t.Fatalf("loaded referral bookkeeping mismatch")
	}
	if loaded.RewardBalances[referrer]["NOVA"].Cmp(usd(111)) != 0 {
		t.Fatalf("loaded rewards = %+v", loaded.RewardBalances[referrer])
	}
	if loaded.Points[user].Cmp(big.NewInt(600)) != 0 || !loaded.Authorized[user] {
		t.Fatalf("loaded points or authorization mismatch")
	}
	if loaded.Params.MinPurchase.Cmp(usd(50)) != 0 || loaded.Params.PrimaryRate != 100 {
		t.Fatalf("loaded params = %+v", loaded.Params)
	}
}

func TestStoreEncodingDeterministic(t *testing.T) {
	state := NewState(testParams())
	for b := byte(1); b <= 5; b++ {
		state.Funds[testAddr(b)] = usd(int64(b))
		state.Points[testAddr(b)] = big.NewInt(int64(b))
		state.Authorized[testAddr(b)] = true
	}
	first := toStoredState(state)
	second := toStoredState(state.Clone())
	if len(first.Funds) != 5 || len(second.Funds) != 5 {
		t.Fatalf("flattened funds = %d/%d", len(first.Funds), len(second.Funds))
	}
	for i := range first.Funds {
		if first.Funds[i] != second.Funds[i] {
			t.Fatalf("fund entry %d differs: %+v vs %+v", i, first.Funds[i], second.Funds[i])
		}
		if first.Authorized[i] != second.Authorized[i] {
			t.Fatalf("authorized entry %d differs", i)
		}
	}
}
