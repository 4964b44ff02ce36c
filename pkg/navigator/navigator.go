package navigator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gallerydl/pkg/browser"
	"gallerydl/pkg/config"
	errs "gallerydl/pkg/errors"
	"gallerydl/pkg/extract"
	"gallerydl/pkg/logger"
)

// Status is the outcome of one advance attempt.
type Status int

const (
	// Advanced means the cursor moved to a new rendered item.
	Advanced Status = iota
	// NeedsScroll means every rendered item has been visited; more
	// must be revealed before advancing again.
	NeedsScroll
	// EndOfFeed means scrolling stopped revealing items. Normal
	// termination, not a failure.
	EndOfFeed
)

func (s Status) String() string {
	switch s {
	case Advanced:
		return "advanced"
	case NeedsScroll:
		return "needs-scroll"
	case EndOfFeed:
		return "end-of-feed"
	default:
		return "unknown"
	}
}

// maxStaleRetries bounds re-resolution of a detached item handle.
const maxStaleRetries = 3

// Position is a cursor position: a live handle plus the durable
// identity it was resolved from. The handle may go stale at any time;
// only the identity survives scrolling and re-rendering.
type Position struct {
	Status   Status
	Item     browser.Element
	Identity string
}

// Navigator owns the cursor over the gallery feed. Identity of an
// item is content-derived, so the cursor survives the feed unmounting
// and remounting DOM nodes as it virtualizes.
type Navigator struct {
	driver   browser.Driver
	gallery  *config.GalleryConfig
	scroller *Scroller
	log      logger.Logger

	visited map[string]bool
	scrolls int
}

func New(driver browser.Driver, gallery *config.GalleryConfig, scroller *Scroller, log logger.Logger) *Navigator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Navigator{
		driver:   driver,
		gallery:  gallery,
		scroller: scroller,
		log:      log,
		visited:  make(map[string]bool),
	}
}

// ScrollsPerformed returns how many scroll attempts the navigator has
// issued so far.
func (n *Navigator) ScrollsPerformed() int { return n.scrolls }

// MarkVisited records an identity as already processed, so Advance
// skips it. The boundary scanner uses this when handing the cursor
// back at a boundary item.
func (n *Navigator) MarkVisited(identity string) {
	if identity != "" {
		n.visited[identity] = true
	}
}

// Unvisit removes an identity from the visited set so Advance offers
// it again. Used when a seek stops on the item the session should
// process next.
func (n *Navigator) Unvisit(identity string) {
	delete(n.visited, identity)
}

// Advance moves the cursor to the first rendered item not yet visited.
// When all rendered items are visited it reports NeedsScroll and the
// caller decides whether to scroll or stop.
func (n *Navigator) Advance(ctx context.Context) (Position, error) {
	els, err := n.driver.Elements(ctx, n.gallery.ItemSelector)
	if err != nil {
		return Position{}, errs.Soft(errs.PhaseAdvance, "", "query rendered items", err)
	}

	for _, el := range els {
		id := extract.ItemIdentity(ctx, el)
		if id == "" || n.visited[id] {
			continue
		}
		n.visited[id] = true
		return Position{Status: Advanced, Item: el, Identity: id}, nil
	}
	return Position{Status: NeedsScroll}, nil
}

// AdvanceOrScroll advances, scrolling as needed, until a new item is
// found or the configured number of consecutive no-progress scrolls is
// exceeded, which reports EndOfFeed.
func (n *Navigator) AdvanceOrScroll(ctx context.Context, maxAttempts int) (Position, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	noProgress := 0
	for {
		if err := ctx.Err(); err != nil {
			return Position{}, err
		}

		pos, err := n.Advance(ctx)
		if err != nil {
			return Position{}, err
		}
		if pos.Status == Advanced {
			return pos, nil
		}

		res, err := n.scroller.Scroll(ctx)
		if err != nil {
			return Position{}, errs.Soft(errs.PhaseScroll, "", "scroll feed", err)
		}
		n.scrolls++
		if res.Revealed == 0 {
			noProgress++
			if noProgress >= maxAttempts {
				return Position{Status: EndOfFeed}, nil
			}
			continue
		}
		noProgress = 0
	}
}

// Resolve finds a rendered item by identity, re-querying the feed.
// Used to replace a stale handle.
func (n *Navigator) Resolve(ctx context.Context, identity string) (browser.Element, error) {
	els, err := n.driver.Elements(ctx, n.gallery.ItemSelector)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if extract.ItemIdentity(ctx, el) == identity {
			return el, nil
		}
	}
	return nil, fmt.Errorf("item %q not rendered: %w", identity, browser.ErrNotFound)
}

// Activate opens the item's detail view. A stale handle is re-resolved
// by identity and retried a bounded number of times before the item is
// declared failed.
func (n *Navigator) Activate(ctx context.Context, pos Position, detailTimeout time.Duration) error {
	item := pos.Item
	for attempt := 0; ; attempt++ {
		_, err := browser.ClickWithFallback(ctx, item, "activate item", n.log)
		if err == nil {
			break
		}
		if !errors.Is(err, browser.ErrStaleElement) || attempt >= maxStaleRetries {
			return errs.Item(errs.PhaseActivate, pos.Identity, "activate item", err)
		}
		n.log.WithField("item", pos.Identity).Debug("stale handle, re-resolving by identity")
		item, err = n.Resolve(ctx, pos.Identity)
		if err != nil {
			return errs.Item(errs.PhaseActivate, pos.Identity, "re-resolve stale item", err)
		}
	}

	if n.gallery.DetailSelector != "" && detailTimeout > 0 {
		if err := n.driver.WaitVisible(ctx, n.gallery.DetailSelector, detailTimeout); err != nil {
			return errs.Item(errs.PhaseActivate, pos.Identity, "wait for detail view", err)
		}
	}
	return nil
}
