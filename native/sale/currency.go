package sale

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// Currency describes a whitelisted payment currency. Fixed currencies are
// pegged to 1.00 USD; the rest consult their price source with staleness
// checking.
type Currency struct {
	Symbol         string
	Decimals       uint8
	Fixed          bool
	Source         PriceSource
	TotalCollected *big.Int
}

// Clone returns a copy of the currency entry. The price source handle is
// shared, not copied.
func (c *Currency) Clone() *Currency {
	if c == nil {
		return nil
	}
	clone := &Currency{
		Symbol:   c.Symbol,
		Decimals: c.Decimals,
		Fixed:    c.Fixed,
		Source:   c.Source,
	}
	if c.TotalCollected != nil {
		clone.TotalCollected = new(big.Int).Set(c.TotalCollected)
	} else {
		clone.TotalCollected = big.NewInt(0)
	}
	return clone
}

// CurrencyRegistry is the external whitelist the purchase orchestrator
// consults. Whitelist CRUD lives outside the core; the engine only reads
// entries and bumps the running total-collected counter.
type CurrencyRegistry interface {
	Currency(symbol string) (*Currency, bool)
	AddCollected(symbol string, amount *big.Int) error
}

// Registry is an in-memory CurrencyRegistry implementation.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Currency
}

// NewRegistry constructs an empty currency registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Currency)}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Register adds or replaces a currency entry.
func (r *Registry) Register(cur *Currency) error {
	if r == nil {
		return fmt.Errorf("registry not configured")
	}
	if cur == nil {
		return fmt.Errorf("registry: nil currency")
	}
	symbol := normalizeSymbol(cur.Symbol)
	if symbol == "" {
		return fmt.Errorf("registry: symbol required")
	}
	entry := cur.Clone()
	entry.Symbol = symbol
	r.mu.Lock()
	r.entries[symbol] = entry
	r.mu.Unlock()
	return nil
}

// Currency returns the entry for the symbol, if whitelisted.
func (r *Registry) Currency(symbol string) (*Currency, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[normalizeSymbol(symbol)]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

// AddCollected bumps the running total of funds received in the currency.
func (r *Registry) AddCollected(symbol string, amount *big.Int) error {
	if r == nil {
		return fmt.Errorf("registry not configured")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("registry: amount must not be negative")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[normalizeSymbol(symbol)]
	if !ok {
		return fmt.Errorf("registry: currency %s not whitelisted", symbol)
	}
	if entry.TotalCollected == nil {
		entry.TotalCollected = big.NewInt(0)
	}
	entry.TotalCollected = new(big.Int).Add(entry.TotalCollected, amount)
	return nil
}
