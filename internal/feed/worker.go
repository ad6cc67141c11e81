package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lmvdz/zo-mm/internal/domain"
)

// Worker owns every exchange stream for one base asset. It merges the
// per-exchange quotes into one map and emits the full map on every update.
//
// Failure model: the streams of one asset live and die together. If any
// stream hard-fails the worker cancels its siblings, emits an error
// message, closes Out and returns; the supervisor decides about respawn.
// One asset's death never touches another asset's worker.
type Worker struct {
	asset    string
	handlers []StreamHandler
	out      chan Message
	log      *slog.Logger
}

func NewWorker(asset string, handlers []StreamHandler, log *slog.Logger) *Worker {
	return &Worker{
		asset:    asset,
		handlers: handlers,
		out:      make(chan Message, 64),
		log:      log.With(slog.String("asset", asset)),
	}
}

// Out carries the worker's messages. It is closed when Run returns.
func (w *Worker) Out() <-chan Message {
	return w.out
}

// Run blocks until a stream fails or ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.out)

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)

	// Cancel runs before the wait so blocked streams always unwind.
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	w.emit(parent, Message{Type: MsgStarted, Pair: w.asset})

	updates := make(chan update, 16)
	errs := make(chan error, len(w.handlers))
	for _, h := range w.handlers {
		wg.Add(1)
		go func(h StreamHandler) {
			defer wg.Done()
			errs <- runStream(ctx, h, updates, w.log)
		}(h)
	}

	spreads := make(map[string]domain.ExchangeQuote, len(w.handlers))
	for {
		select {
		case <-parent.Done():
			return parent.Err()
		case u := <-updates:
			spreads[u.exchange] = u.quote
			// Each message carries its own copy; the supervisor hands the
			// map to the aggregator on another goroutine.
			cp := make(map[string]domain.ExchangeQuote, len(spreads))
			for k, v := range spreads {
				cp[k] = v
			}
			w.emit(parent, Message{Type: MsgSpreads, Pair: w.asset, Spreads: cp})
		case err := <-errs:
			cancel()
			if parent.Err() != nil {
				return parent.Err()
			}
			w.log.Error("stream failed, tearing down asset worker", slog.Any("error", err))
			w.emit(parent, Message{Type: MsgError, Pair: w.asset, Data: err.Error()})
			return err
		}
	}
}

func (w *Worker) emit(ctx context.Context, m Message) {
	select {
	case w.out <- m:
	case <-ctx.Done():
	}
}
