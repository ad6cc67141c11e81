package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lmvdz/zo-mm/internal/domain"
	"github.com/lmvdz/zo-mm/internal/engine"
	"github.com/lmvdz/zo-mm/internal/infra"
)

// SpreadsSink records spreads messages for later inspection. A nil sink
// disables recording.
type SpreadsSink interface {
	RecordSpreads(asset string, spreads map[string]domain.ExchangeQuote)
}

// HandlerFactory builds the stream handlers for one base asset.
type HandlerFactory func(asset string) []StreamHandler

// DefaultHandlers wires the three production exchanges for an asset.
func DefaultHandlers(asset string) []StreamHandler {
	return []StreamHandler{
		Binance{Asset: asset},
		Bitmex{Asset: asset},
		Deribit{Asset: asset},
	}
}

// AssetsFromSymbols derives the unique base assets from the configured
// market symbols, preserving first-seen order.
func AssetsFromSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	var out []string
	for _, sym := range symbols {
		asset := domain.BaseAssetOf(sym)
		if _, ok := seen[asset]; ok {
			continue
		}
		seen[asset] = struct{}{}
		out = append(out, asset)
	}
	return out
}

// Supervisor runs one worker per asset and keeps it alive: a dead worker
// is respawned with exponential backoff, and a per-asset circuit breaker
// stops the respawn churn when an asset's feeds are persistently broken.
type Supervisor struct {
	assets   []string
	factory  HandlerFactory
	agg      *engine.Aggregator
	sink     SpreadsSink
	log      *slog.Logger
	backoff  infra.Backoff
	breakers CircuitBreakerConfigFn
}

// CircuitBreakerConfigFn builds the breaker config for one asset. Tests
// shrink the timeout through this hook.
type CircuitBreakerConfigFn func(asset string) infra.CircuitBreakerConfig

func defaultBreakerConfig(asset string) infra.CircuitBreakerConfig {
	return infra.DefaultCircuitBreakerConfig("feed-" + asset)
}

func NewSupervisor(assets []string, factory HandlerFactory, agg *engine.Aggregator,
	sink SpreadsSink, log *slog.Logger) *Supervisor {
	return &Supervisor{
		assets:   assets,
		factory:  factory,
		agg:      agg,
		sink:     sink,
		log:      log,
		backoff:  infra.DefaultBackoff(),
		breakers: defaultBreakerConfig,
	}
}

// SetBackoff overrides the respawn backoff. Used by tests.
func (s *Supervisor) SetBackoff(b infra.Backoff) { s.backoff = b }

// SetBreakerConfig overrides the per-asset breaker config. Used by tests.
func (s *Supervisor) SetBreakerConfig(fn CircuitBreakerConfigFn) { s.breakers = fn }

// Run blocks until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, asset := range s.assets {
		wg.Add(1)
		go func(asset string) {
			defer wg.Done()
			s.superviseAsset(ctx, asset)
		}(asset)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Supervisor) superviseAsset(ctx context.Context, asset string) {
	br := infra.NewCircuitBreaker(s.breakers(asset))
	retry := 0

	for ctx.Err() == nil {
		if !br.Allow() {
			s.log.Warn("feed breaker open, holding respawn", slog.String("asset", asset))
			if !wait(ctx, s.backoff.Max) {
				return
			}
			continue
		}

		w := NewWorker(asset, s.factory(asset), s.log)
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		healthy := s.dispatch(ctx, asset, w)
		err := <-done
		if ctx.Err() != nil {
			return
		}

		if healthy {
			br.RecordSuccess()
			retry = 0
		} else {
			br.RecordFailure()
		}
		retry++
		delay := s.backoff.Delay(retry)
		s.log.Warn("feed worker died, respawning",
			slog.String("asset", asset),
			slog.Any("error", err),
			slog.Duration("delay", delay))
		if !wait(ctx, delay) {
			return
		}
	}
}

// dispatch drains a worker's messages until its channel closes. It reports
// whether the worker ever produced spreads, which is what resets the
// breaker: a worker that connects but never quotes is still failing.
func (s *Supervisor) dispatch(ctx context.Context, asset string, w *Worker) bool {
	healthy := false
	for msg := range w.Out() {
		switch msg.Type {
		case MsgSpreads:
			healthy = true
			s.agg.Apply(asset, msg.Spreads)
			if s.sink != nil {
				s.sink.RecordSpreads(asset, msg.Spreads)
			}
		case MsgError:
			s.log.Warn("feed error",
				slog.String("asset", msg.Pair), slog.String("error", msg.Data))
		default:
			s.log.Debug("feed message",
				slog.String("asset", msg.Pair), slog.String("type", msg.Type))
		}
	}
	return healthy
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
