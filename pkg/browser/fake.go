package browser

import (
	"context"
	"time"
)

// FakeElement is an in-memory Element for tests. Fields are read
// directly; hooks override individual behaviors when set.
type FakeElement struct {
	ID         string
	TextValue  string
	Attrs      map[string]string
	IsVisible  bool
	Children   map[string][]Element
	Detached   bool
	ClickCount int

	ClickFn    func(strategy ClickStrategy) error
	ScrollByFn func(dx, dy int) error
}

func (e *FakeElement) Elements(ctx context.Context, selector string) ([]Element, error) {
	if e.Detached {
		return nil, ErrStaleElement
	}
	return e.Children[selector], nil
}

func (e *FakeElement) Text(ctx context.Context) (string, error) {
	if e.Detached {
		return "", ErrStaleElement
	}
	return e.TextValue, nil
}

func (e *FakeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if e.Detached {
		return "", false, ErrStaleElement
	}
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *FakeElement) Visible(ctx context.Context) (bool, error) {
	if e.Detached {
		return false, ErrStaleElement
	}
	return e.IsVisible, nil
}

func (e *FakeElement) Click(ctx context.Context, strategy ClickStrategy) error {
	if e.Detached {
		return ErrStaleElement
	}
	if e.ClickFn != nil {
		if err := e.ClickFn(strategy); err != nil {
			return err
		}
	}
	e.ClickCount++
	return nil
}

func (e *FakeElement) ScrollBy(ctx context.Context, dx, dy int) error {
	if e.Detached {
		return ErrStaleElement
	}
	if e.ScrollByFn != nil {
		return e.ScrollByFn(dx, dy)
	}
	return nil
}

func (e *FakeElement) ScrollIntoView(ctx context.Context) error {
	if e.Detached {
		return ErrStaleElement
	}
	return nil
}

// FakeDriver is an in-memory Driver for tests. Selector results come
// from the Nodes map unless ElementsFn overrides resolution, which lets
// tests simulate feeds that grow as the page scrolls.
type FakeDriver struct {
	Nodes map[string][]Element

	ElementsFn func(selector string) ([]Element, error)
	EvalFn     func(js string, out any) error
	NavigateFn func(url string) error

	NavigatedURLs []string
	BackCount     int
	WindowScrolls int
	WheelScrolls  int
	KeyPresses    []Key
	Closed        bool
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{Nodes: make(map[string][]Element)}
}

func (d *FakeDriver) Navigate(ctx context.Context, url string) error {
	if d.NavigateFn != nil {
		if err := d.NavigateFn(url); err != nil {
			return err
		}
	}
	d.NavigatedURLs = append(d.NavigatedURLs, url)
	return nil
}

func (d *FakeDriver) NavigateBack(ctx context.Context) error {
	d.BackCount++
	return nil
}

func (d *FakeDriver) Elements(ctx context.Context, selector string) ([]Element, error) {
	if d.ElementsFn != nil {
		return d.ElementsFn(selector)
	}
	return d.Nodes[selector], nil
}

func (d *FakeDriver) Eval(ctx context.Context, js string, out any) error {
	if d.EvalFn != nil {
		return d.EvalFn(js, out)
	}
	return nil
}

func (d *FakeDriver) ScrollWindow(ctx context.Context, dx, dy int) error {
	d.WindowScrolls++
	return nil
}

func (d *FakeDriver) Wheel(ctx context.Context, dx, dy float64) error {
	d.WheelScrolls++
	return nil
}

func (d *FakeDriver) PressKey(ctx context.Context, key Key) error {
	d.KeyPresses = append(d.KeyPresses, key)
	return nil
}

func (d *FakeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	els, err := d.Elements(ctx, selector)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *FakeDriver) Idle(ctx context.Context, timeout time.Duration) {}

func (d *FakeDriver) Close() error {
	d.Closed = true
	return nil
}
