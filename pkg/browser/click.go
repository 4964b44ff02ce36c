package browser

import (
	"context"
	"errors"

	"gallerydl/pkg/logger"
	"gallerydl/pkg/retry"
)

// clickOrder is the order strategies are attempted when clicking an
// element that may sit under overlays or use synthetic event handlers.
var clickOrder = []ClickStrategy{ClickPlain, ClickForced, ClickCoordinate, ClickDispatch}

// ClickWithFallback clicks el, working through every click strategy
// until one succeeds. It returns the name of the strategy that landed.
// A stale element fails fast so the caller can re-resolve the handle.
func ClickWithFallback(ctx context.Context, el Element, what string, log logger.Logger) (string, error) {
	strategies := make([]retry.Strategy, 0, len(clickOrder))
	for _, s := range clickOrder {
		strategy := s
		strategies = append(strategies, retry.Strategy{
			Name: string(strategy),
			Run: func() error {
				return el.Click(ctx, strategy)
			},
		})
	}
	chain := retry.NewChain(what, log, strategies...).AbortIf(func(err error) bool {
		return errors.Is(err, ErrStaleElement)
	})
	return chain.Run()
}
