package domain

import (
	"fmt"
	"sync"

	"github.com/lmvdz/zo-mm/pkg/quant"
)

// Balance tracks a single asset's margin balance in micros.
// All mutation goes through Credit/Debit/Reserve/Release so the
// available >= 0 invariant can be enforced in one place.
type Balance struct {
	Asset          string
	AmountMicros   int64
	ReservedMicros int64
}

// AvailableMicros is the spendable amount: total minus reserved.
func (b *Balance) AvailableMicros() int64 {
	return quant.CheckedSub(b.AmountMicros, b.ReservedMicros)
}

func (b *Balance) Credit(amountMicros int64) {
	b.AmountMicros = quant.CheckedAdd(b.AmountMicros, amountMicros)
	b.verify()
}

func (b *Balance) Debit(amountMicros int64) {
	b.AmountMicros = quant.CheckedSub(b.AmountMicros, amountMicros)
	b.verify()
}

func (b *Balance) Reserve(amountMicros int64) {
	b.ReservedMicros = quant.CheckedAdd(b.ReservedMicros, amountMicros)
	b.verify()
}

func (b *Balance) Release(amountMicros int64) {
	b.ReservedMicros = quant.CheckedSub(b.ReservedMicros, amountMicros)
	b.verify()
}

func (b *Balance) verify() {
	if b.AmountMicros < 0 {
		panic(fmt.Sprintf("BALANCE_NEGATIVE_AMOUNT: %s %d", b.Asset, b.AmountMicros))
	}
	if b.ReservedMicros < 0 || b.ReservedMicros > b.AmountMicros {
		panic(fmt.Sprintf("BALANCE_INVALID_RESERVE: %s reserved=%d amount=%d",
			b.Asset, b.ReservedMicros, b.AmountMicros))
	}
}

// BalanceBook is a thread-safe per-asset balance table.
type BalanceBook struct {
	mu       sync.Mutex
	balances map[string]*Balance
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{balances: make(map[string]*Balance)}
}

// Get returns the balance for an asset, creating a zero entry if absent.
func (bb *BalanceBook) Get(asset string) *Balance {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	b, ok := bb.balances[asset]
	if !ok {
		b = &Balance{Asset: asset}
		bb.balances[asset] = b
	}
	return b
}

// AvailableMicros returns the spendable amount for an asset, zero if absent.
func (bb *BalanceBook) AvailableMicros(asset string) int64 {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	b, ok := bb.balances[asset]
	if !ok {
		return 0
	}
	return b.AvailableMicros()
}

// Snapshot returns a copy of all balances for logging.
func (bb *BalanceBook) Snapshot() map[string]Balance {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	out := make(map[string]Balance, len(bb.balances))
	for k, v := range bb.balances {
		out[k] = *v
	}
	return out
}
