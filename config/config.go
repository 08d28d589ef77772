package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"novasale/crypto"

	"github.com/BurntSushi/toml"
)

// Currency describes one accepted payment currency. Fixed currencies are
// treated as pegged to 1.00 USD; floating currencies require a price feed.
type Currency struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
	Fixed    bool   `toml:"Fixed"`
}

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	OpsAddress  string `toml:"OpsAddress"`
	DataDir     string `toml:"DataDir"`
	Environment string `toml:"Environment"`

	Treasury     string `toml:"Treasury"`
	Custody      string `toml:"Custody"`
	NativeSymbol string `toml:"NativeSymbol"`

	// USD amounts are integer strings in the 18-decimal accounting unit.
	MinPurchaseUSD   string `toml:"MinPurchaseUSD"`
	MaxAllocationUSD string `toml:"MaxAllocationUSD"`
	AuthThresholdUSD string `toml:"AuthThresholdUSD"`

	// Referral commission rates in tenths of a percent.
	PrimaryRate          uint32 `toml:"PrimaryRate"`
	SecondaryRate        uint32 `toml:"SecondaryRate"`
	SecondaryRewardAsset string `toml:"SecondaryRewardAsset"`

	PriceMaxAgeSeconds uint64 `toml:"PriceMaxAgeSeconds"`

	Currencies []Currency `toml:"currency"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.OpsAddress) == "" {
		c.OpsAddress = ":9090"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./novasale-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "development"
	}
	if strings.TrimSpace(c.NativeSymbol) == "" {
		c.NativeSymbol = "ETH"
	}
	if strings.TrimSpace(c.MinPurchaseUSD) == "" {
		c.MinPurchaseUSD = "0"
	}
	if strings.TrimSpace(c.MaxAllocationUSD) == "" {
		c.MaxAllocationUSD = "0"
	}
	if strings.TrimSpace(c.AuthThresholdUSD) == "" {
		c.AuthThresholdUSD = "0"
	}
	if c.PriceMaxAgeSeconds == 0 {
		c.PriceMaxAgeSeconds = 300
	}
}

// Validate checks address encodings and amount strings up front so wiring
// failures surface at startup rather than on the first purchase.
func (c *Config) Validate() error {
	if _, err := c.TreasuryAddress(); err != nil {
		return err
	}
	if _, err := c.CustodyAddress(); err != nil {
		return err
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"MinPurchaseUSD", c.MinPurchaseUSD},
		{"MaxAllocationUSD", c.MaxAllocationUSD},
		{"AuthThresholdUSD", c.AuthThresholdUSD},
	} {
		if _, err := parseAmount(field.name, field.value); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(c.Currencies))
	for _, cur := range c.Currencies {
		symbol := strings.ToUpper(strings.TrimSpace(cur.Symbol))
		if symbol == "" {
			return fmt.Errorf("config: currency with blank symbol")
		}
		if seen[symbol] {
			return fmt.Errorf("config: duplicate currency %s", symbol)
		}
		seen[symbol] = true
	}
	return nil
}

// TreasuryAddress decodes the configured treasury account.
func (c *Config) TreasuryAddress() ([20]byte, error) {
	return decodeAccount("Treasury", c.Treasury)
}

// CustodyAddress decodes the configured custody account.
func (c *Config) CustodyAddress() ([20]byte, error) {
	return decodeAccount("Custody", c.Custody)
}

// MinPurchase returns the minimum purchase in accounting units.
func (c *Config) MinPurchase() (*big.Int, error) {
	return parseAmount("MinPurchaseUSD", c.MinPurchaseUSD)
}

// MaxAllocation returns the per-participant cap in accounting units.
func (c *Config) MaxAllocation() (*big.Int, error) {
	return parseAmount("MaxAllocationUSD", c.MaxAllocationUSD)
}

// AuthThreshold returns the self-service cap in accounting units.
func (c *Config) AuthThreshold() (*big.Int, error) {
	return parseAmount("AuthThresholdUSD", c.AuthThresholdUSD)
}

func decodeAccount(name, value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("config: %s address is required", name)
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("config: invalid %s address: %w", name, err)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseAmount(name, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must be a non-negative integer string, got %q", name, value)
	}
	return amount, nil
}

// createDefault creates and saves a default configuration file. The generated
// treasury and custody keys are placeholders for local development only.
func createDefault(path string) (*Config, error) {
	treasuryKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	custodyKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:         ":8545",
		OpsAddress:         ":9090",
		DataDir:            "./novasale-data",
		Environment:        "development",
		Treasury:           treasuryKey.PubKey().Address().String(),
		Custody:            custodyKey.PubKey().Address().String(),
		NativeSymbol:       "ETH",
		MinPurchaseUSD:     "50000000000000000000",     // 50 USD
		MaxAllocationUSD:   "100000000000000000000000", // 100000 USD
		AuthThresholdUSD:   "1000000000000000000000",   // 1000 USD
		PrimaryRate:        100,
		SecondaryRate:      0,
		PriceMaxAgeSeconds: 300,
		Currencies: []Currency{
			{Symbol: "USDT", Decimals: 6, Fixed: true},
			{Symbol: "USDC", Decimals: 6, Fixed: true},
			{Symbol: "ETH", Decimals: 18, Fixed: false},
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
