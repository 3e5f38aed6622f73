package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"spotbot/internal/model"
	"spotbot/internal/strategy"
)

// Router dispatches order-fill events to the strategy that placed the
// order. It consumes the stream on a single goroutine, so fills for one
// pair are always applied in arrival order.
type Router struct {
	fills      <-chan model.FillEvent
	strategies map[string]strategy.Strategy
}

// NewRouter builds a router over the given fill stream.
func NewRouter(fills <-chan model.FillEvent, strategies ...strategy.Strategy) *Router {
	byName := make(map[string]strategy.Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	return &Router{fills: fills, strategies: byName}
}

// Run processes fills until the context is cancelled.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fill, ok := <-r.fills:
			if !ok {
				return
			}
			r.dispatch(fill)
		}
	}
}

func (r *Router) dispatch(fill model.FillEvent) {
	s, ok := r.strategies[fill.Strategy]
	if !ok {
		log.Debug().Str("strategy", fill.Strategy).Str("symbol", fill.Symbol).
			Msg("fill for unknown strategy, ignoring")
		return
	}
	if !s.Enabled() {
		return
	}

	switch fill.Side {
	case model.SideBuy:
		s.HandleBuying(fill)
	case model.SideSell:
		s.HandleSelling(fill)
	default:
		log.Warn().Str("side", string(fill.Side)).Str("symbol", fill.Symbol).
			Msg("fill with unknown side, ignoring")
	}
}
