package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"novasale/crypto"
	"novasale/native/sale"
)

type purchaseParams struct {
	User          string `json:"user"`
	Referrer      string `json:"referrer,omitempty"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	AttachedValue string `json:"attachedValue,omitempty"`
}

type purchaseResult struct {
	User            string `json:"user"`
	Referrer        string `json:"referrer,omitempty"`
	Asset           string `json:"asset"`
	Amount          string `json:"amount"`
	UsdAmount       string `json:"usdAmount"`
	AssetUnits      string `json:"assetUnits"`
	RoundIndex      uint64 `json:"roundIndex"`
	RoundPrice      string `json:"roundPrice"`
	AssetPrice      string `json:"assetPrice"`
	Points          string `json:"points"`
	ReferrerPoints  string `json:"referrerPoints"`
	PrimaryReward   string `json:"primaryReward"`
	SecondaryReward string `json:"secondaryReward"`
}

type claimParams struct {
	Caller string   `json:"caller"`
	Assets []string `json:"assets"`
}

type roundIndexParams struct {
	Index uint64 `json:"index"`
}

type configureRoundParams struct {
	Price  string `json:"price"`
	Supply string `json:"supply"`
}

type adjustRoundParams struct {
	Index  uint64 `json:"index"`
	Price  string `json:"price,omitempty"`
	Supply string `json:"supply,omitempty"`
}

type addressParams struct {
	Address string `json:"address"`
}

type ratesParams struct {
	Address   string `json:"address,omitempty"`
	Primary   uint32 `json:"primary"`
	Secondary uint32 `json:"secondary"`
}

type authorizationParams struct {
	Address    string `json:"address"`
	Authorized bool   `json:"authorized"`
}

type currencyPriceParams struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

type balanceParams struct {
	Address string `json:"address"`
	Round   uint64 `json:"round"`
}

type rewardBalanceParams struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
}

type resolveReferrerParams struct {
	User     string `json:"user"`
	Referrer string `json:"referrer,omitempty"`
}

type saleStateResult struct {
	State string `json:"state"`
}

type roundResult struct {
	Index     uint64 `json:"index"`
	State     string `json:"state"`
	Price     string `json:"price"`
	Sold      string `json:"sold"`
	Supply    string `json:"supply"`
	Remaining string `json:"remaining"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type referralResult struct {
	Address       string `json:"address"`
	Enabled       bool   `json:"enabled"`
	PrimaryRate   uint32 `json:"primaryRate"`
	SecondaryRate uint32 `json:"secondaryRate"`
	ReferralCount uint64 `json:"referralCount"`
}

func parseParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("params required")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func parseAddress(name, raw string) (sale.Address, error) {
	var out sale.Address
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("%s address required", name)
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid %s address: %v", name, err)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

// parseOptionalAddress treats an empty string as the zero address.
func parseOptionalAddress(name, raw string) (sale.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return sale.Address{}, nil
	}
	return parseAddress(name, raw)
}

func parseBig(name, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", name)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer string", name)
	}
	return value, nil
}

// parseOptionalBig treats an empty string as nil.
func parseOptionalBig(name, raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parseBig(name, raw)
}

func formatAddress(addr sale.Address) string {
	if addr == (sale.Address{}) {
		return ""
	}
	return crypto.MustNewAddress(crypto.NovaPrefix, addr[:]).String()
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func formatReceipt(receipt *sale.PurchaseReceipt) purchaseResult {
	return purchaseResult{
		User:            formatAddress(receipt.User),
		Referrer:        formatAddress(receipt.Referrer),
		Asset:           receipt.Asset,
		Amount:          formatAmount(receipt.Amount),
		UsdAmount:       formatAmount(receipt.USDAmount),
		AssetUnits:      formatAmount(receipt.AssetUnits),
		RoundIndex:      receipt.RoundIndex,
		RoundPrice:      formatAmount(receipt.RoundPrice),
		AssetPrice:      formatAmount(receipt.AssetPrice),
		Points:          formatAmount(receipt.Points),
		ReferrerPoints:  formatAmount(receipt.ReferrerPoints),
		PrimaryReward:   formatAmount(receipt.PrimaryReward),
		SecondaryReward: formatAmount(receipt.SecondaryReward),
	}
}

func formatRound(round *sale.Round, index uint64) roundResult {
	return roundResult{
		Index:     index,
		State:     round.State.String(),
		Price:     formatAmount(round.Price),
		Sold:      formatAmount(round.Sold),
		Supply:    formatAmount(round.Supply),
		Remaining: formatAmount(round.Remaining()),
	}
}
