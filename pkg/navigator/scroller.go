package navigator

import (
	"context"
	"fmt"
	"time"

	"gallerydl/pkg/browser"
	"gallerydl/pkg/config"
	"gallerydl/pkg/extract"
	"gallerydl/pkg/logger"
	"gallerydl/pkg/retry"
)

// ScrollResult reports one scroll attempt. Revealed is the number of
// item identities present after the attempt that were not rendered
// before; zero means no strategy made progress.
type ScrollResult struct {
	Revealed int
	Strategy string
}

// Scroller reveals more items in a virtualized feed. Progress is
// measured by set-difference over item identities, never by pixel
// offset, because the viewport can move without mounting anything new.
type Scroller struct {
	driver  browser.Driver
	cfg     *config.ScrollConfig
	gallery *config.GalleryConfig
	log     logger.Logger
}

func NewScroller(driver browser.Driver, cfg *config.ScrollConfig, gallery *config.GalleryConfig, log logger.Logger) *Scroller {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scroller{driver: driver, cfg: cfg, gallery: gallery, log: log}
}

// Identities returns the identity set of currently rendered items.
// Items that expose no usable identity are not counted.
func (s *Scroller) Identities(ctx context.Context) (map[string]bool, error) {
	els, err := s.driver.Elements(ctx, s.gallery.ItemSelector)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(els))
	for _, el := range els {
		if id := extract.ItemIdentity(ctx, el); id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}

// Scroll works through the scroll strategies in order and stops at the
// first one that reveals at least the detection threshold of new item
// identities. Revealed 0 with a nil error means every strategy ran
// without progress, which is how the end of the feed announces itself.
func (s *Scroller) Scroll(ctx context.Context) (ScrollResult, error) {
	before, err := s.Identities(ctx)
	if err != nil {
		return ScrollResult{}, err
	}

	threshold := s.cfg.DetectionThreshold
	if threshold < 1 {
		threshold = 1
	}

	revealed := 0
	attempt := func(do func() error) func() error {
		return func() error {
			if err := do(); err != nil {
				return err
			}
			s.settle(ctx)
			after, err := s.Identities(ctx)
			if err != nil {
				return err
			}
			n := 0
			for id := range after {
				if !before[id] {
					n++
				}
			}
			if n < threshold {
				return fmt.Errorf("no new items rendered (%d revealed)", n)
			}
			revealed = n
			return nil
		}
	}

	chain := retry.NewChain("scroll", s.log,
		retry.Strategy{Name: "container", Run: attempt(func() error { return s.scrollContainer(ctx) })},
		retry.Strategy{Name: "window", Run: attempt(func() error { return s.driver.ScrollWindow(ctx, 0, s.cfg.AmountPx) })},
		retry.Strategy{Name: "keyboard", Run: attempt(func() error { return s.driver.PressKey(ctx, browser.KeyPageDown) })},
		retry.Strategy{Name: "wheel", Run: attempt(func() error { return s.driver.Wheel(ctx, 0, float64(s.cfg.AmountPx)) })},
	)

	name, err := chain.Run()
	if err != nil {
		// Exhausting every strategy is a normal no-progress outcome,
		// not a failure.
		return ScrollResult{Revealed: 0}, nil
	}
	return ScrollResult{Revealed: revealed, Strategy: name}, nil
}

func (s *Scroller) scrollContainer(ctx context.Context) error {
	els, err := s.driver.Elements(ctx, s.gallery.ScrollContainer)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return browser.ErrNotFound
	}
	return els[0].ScrollBy(ctx, 0, s.cfg.AmountPx)
}

func (s *Scroller) settle(ctx context.Context) {
	wait := s.cfg.Wait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
