package browser

import (
	"context"
	"errors"
	"time"
)

// ErrStaleElement reports that an element handle no longer refers to a
// live DOM node. Callers re-resolve the element by identity and retry.
var ErrStaleElement = errors.New("browser: stale element")

// ErrNotFound reports that a selector matched nothing.
var ErrNotFound = errors.New("browser: element not found")

// ClickStrategy names one way of delivering a click to an element.
// Strategies are tried in order until one lands.
type ClickStrategy string

const (
	// ClickPlain is a normal trusted click on the element.
	ClickPlain ClickStrategy = "plain"
	// ClickForced invokes the element's click() method directly,
	// bypassing hit testing and overlay interception.
	ClickForced ClickStrategy = "forced"
	// ClickCoordinate moves the mouse to the element's box center and
	// clicks at those coordinates.
	ClickCoordinate ClickStrategy = "coordinate"
	// ClickDispatch dispatches a synthetic MouseEvent through the DOM
	// event system.
	ClickDispatch ClickStrategy = "dispatch"
)

// Key names a keyboard key that can be pressed against the page.
type Key string

const (
	KeyPageDown  Key = "PageDown"
	KeyArrowDown Key = "ArrowDown"
	KeyEnd       Key = "End"
	KeyEscape    Key = "Escape"
)

// Scope is anything elements can be queried under. Both the page and
// individual elements satisfy it, so extraction code can search a
// detail card the same way it searches the whole document.
type Scope interface {
	Elements(ctx context.Context, selector string) ([]Element, error)
}

// Element is a handle to a live DOM node.
type Element interface {
	Scope

	// Text returns the rendered text content of the node.
	Text(ctx context.Context) (string, error)
	// Attribute returns the named attribute, or "" and false when the
	// attribute is absent.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Visible reports whether the node occupies visible layout space.
	Visible(ctx context.Context) (bool, error)
	// Click delivers a click using the given strategy.
	Click(ctx context.Context, strategy ClickStrategy) error
	// ScrollBy scrolls the element's own scroll box by the given pixel
	// deltas.
	ScrollBy(ctx context.Context, dx, dy int) error
	// ScrollIntoView brings the node into the viewport.
	ScrollIntoView(ctx context.Context) error
}

// Driver is the browser surface the crawler runs against. The rod
// implementation is the production driver; tests use FakeDriver.
type Driver interface {
	Scope

	// Navigate loads the URL and waits for the page load event.
	Navigate(ctx context.Context, url string) error
	// NavigateBack goes one step back in session history.
	NavigateBack(ctx context.Context) error
	// Eval runs a JS function expression on the page and unmarshals
	// the awaited result into out. Pass nil to discard the result.
	Eval(ctx context.Context, js string, out any) error
	// ScrollWindow scrolls the window by the given pixel deltas.
	ScrollWindow(ctx context.Context, dx, dy int) error
	// Wheel dispatches a mouse wheel gesture at the current pointer
	// position.
	Wheel(ctx context.Context, dx, dy float64) error
	// PressKey sends a keyboard key to the focused target.
	PressKey(ctx context.Context, key Key) error
	// WaitVisible blocks until the selector matches a visible element
	// or the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Idle waits for the page's network and layout to settle, bounded
	// by the timeout. A timeout here is not an error.
	Idle(ctx context.Context, timeout time.Duration)
	// Close shuts the browser down.
	Close() error
}
