package engine

import (
	"sort"
	"sync"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/pkg/quant"
)

// MidMode selects how per-exchange mids are blended into one price.
type MidMode int8

const (
	// MidPairwise is the default: a running pairwise average,
	// mid = mid==0 ? local : (mid+local)/2. Later exchanges weigh more.
	MidPairwise MidMode = iota
	// MidMean is the plain arithmetic mean across exchanges.
	MidMean
)

// ParseMidMode maps the config string to a MidMode; unknown values fall
// back to pairwise.
func ParseMidMode(s string) MidMode {
	if s == "mean" {
		return MidMean
	}
	return MidPairwise
}

// Aggregator blends per-exchange top-of-book quotes into one mid price per
// base asset.
//
// Writer discipline: only the feed supervisor's dispatch goroutine calls
// Apply; the rebalancer only reads. The mutex makes the published value
// safe to read; a reader never observes a partially folded mid because the
// fold runs on locals and is stored in one assignment.
type Aggregator struct {
	mu     sync.RWMutex
	mode   MidMode
	quotes map[string]map[string]domain.ExchangeQuote
	mids   map[string]quant.PriceMicros
}

func NewAggregator(mode MidMode) *Aggregator {
	return &Aggregator{
		mode:   mode,
		quotes: make(map[string]map[string]domain.ExchangeQuote),
		mids:   make(map[string]quant.PriceMicros),
	}
}

// Apply replaces the whole exchange map for an asset (the envelope carries
// the complete current map, not a delta) and recomputes its mid. Exchanges
// are folded in sorted name order so the result is deterministic.
func (a *Aggregator) Apply(asset string, spreads map[string]domain.ExchangeQuote) {
	if len(spreads) == 0 {
		return
	}

	names := make([]string, 0, len(spreads))
	for name := range spreads {
		names = append(names, name)
	}
	sort.Strings(names)

	var mid quant.PriceMicros
	switch a.mode {
	case MidMean:
		var sum int64
		for _, name := range names {
			sum = quant.CheckedAdd(sum, int64(spreads[name].LocalMidMicros()))
		}
		mid = quant.PriceMicros(sum / int64(len(names)))
	default:
		for _, name := range names {
			local := spreads[name].LocalMidMicros()
			if mid == 0 {
				mid = local
			} else {
				mid = (mid + local) / 2
			}
		}
	}

	cp := make(map[string]domain.ExchangeQuote, len(spreads))
	for k, v := range spreads {
		cp[k] = v
	}

	a.mu.Lock()
	a.quotes[asset] = cp
	a.mids[asset] = mid
	a.mu.Unlock()
}

// Mid returns the blended mid for an asset. ok is false until the first
// spreads message for the asset has been applied; quoting must stay
// suspended until then.
func (a *Aggregator) Mid(asset string) (quant.PriceMicros, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	mid, ok := a.mids[asset]
	return mid, ok && mid > 0
}

// Quotes returns a copy of the current exchange map for an asset.
func (a *Aggregator) Quotes(asset string) map[string]domain.ExchangeQuote {
	a.mu.RLock()
	defer a.mu.RUnlock()
	src, ok := a.quotes[asset]
	if !ok {
		return nil
	}
	out := make(map[string]domain.ExchangeQuote, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
