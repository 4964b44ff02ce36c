package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"gallerydl/pkg/config"
	"gallerydl/pkg/logger"
)

// RodDriver drives a real Chromium instance through the DevTools
// protocol.
type RodDriver struct {
	browser  *rod.Browser
	page     *rod.Page
	launched *launcher.Launcher
	log      logger.Logger
}

// NewRodDriver launches (or attaches to) a browser and opens a stealth
// page ready for navigation. Downloads are routed into downloadsDir.
func NewRodDriver(cfg *config.BrowserConfig, downloadsDir string, log logger.Logger) (*RodDriver, error) {
	d := &RodDriver{log: log}

	var controlURL string
	if cfg.RemoteURL != "" {
		controlURL = cfg.RemoteURL
		log.WithField("url", cfg.RemoteURL).Info("attaching to remote browser")
	} else {
		l := launcher.New().
			Headless(cfg.Headless).
			Leakless(true)
		if cfg.ExecPath != "" {
			l = l.Bin(cfg.ExecPath)
		}
		if cfg.ProfileDir != "" {
			l = l.UserDataDir(cfg.ProfileDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		d.launched = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	d.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	d.page = page

	if downloadsDir != "" {
		err := proto.BrowserSetDownloadBehavior{
			Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
			DownloadPath: downloadsDir,
		}.Call(b)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("set download path: %w", err)
		}
	}

	return d, nil
}

func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	p := d.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		d.log.WarnWithFields("page load wait ended early", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
	}
	return nil
}

func (d *RodDriver) NavigateBack(ctx context.Context) error {
	if err := d.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("navigate back: %w", err)
	}
	return nil
}

func (d *RodDriver) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, mapRodError(err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, page: d.page})
	}
	return out, nil
}

func (d *RodDriver) Eval(ctx context.Context, js string, out any) error {
	res, err := d.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return mapRodError(err)
	}
	if out == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decode eval result: %w", err)
	}
	return unmarshalEval(raw, out)
}

func (d *RodDriver) ScrollWindow(ctx context.Context, dx, dy int) error {
	js := fmt.Sprintf(`() => window.scrollBy(%d, %d)`, dx, dy)
	return d.Eval(ctx, js, nil)
}

func (d *RodDriver) Wheel(ctx context.Context, dx, dy float64) error {
	if err := d.page.Context(ctx).Mouse.Scroll(dx, dy, 1); err != nil {
		return mapRodError(err)
	}
	return nil
}

func (d *RodDriver) PressKey(ctx context.Context, key Key) error {
	k, ok := keyMap[key]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	if err := d.page.Context(ctx).Keyboard.Press(k); err != nil {
		return mapRodError(err)
	}
	return nil
}

var keyMap = map[Key]input.Key{
	KeyPageDown:  input.PageDown,
	KeyArrowDown: input.ArrowDown,
	KeyEnd:       input.End,
	KeyEscape:    input.Escape,
}

func (d *RodDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	p := d.page.Context(ctx).Timeout(timeout)
	el, err := p.Element(selector)
	if err != nil {
		return mapRodError(err)
	}
	if err := el.WaitVisible(); err != nil {
		return mapRodError(err)
	}
	return nil
}

func (d *RodDriver) Idle(ctx context.Context, timeout time.Duration) {
	if err := d.page.Context(ctx).Timeout(timeout).WaitIdle(timeout); err != nil {
		d.log.WithError(err).Debug("idle wait ended")
	}
}

func (d *RodDriver) Close() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
	}
	if d.launched != nil {
		d.launched.Cleanup()
	}
	return err
}

// rodElement adapts a rod element handle to the Element interface.
type rodElement struct {
	el   *rod.Element
	page *rod.Page
}

func (e *rodElement) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, mapRodError(err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, page: e.page})
	}
	return out, nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", mapRodError(err)
	}
	return text, nil
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, mapRodError(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	v, err := e.el.Context(ctx).Visible()
	if err != nil {
		return false, mapRodError(err)
	}
	return v, nil
}

func (e *rodElement) Click(ctx context.Context, strategy ClickStrategy) error {
	el := e.el.Context(ctx)
	switch strategy {
	case ClickPlain:
		if err := el.ScrollIntoView(); err != nil {
			return mapRodError(err)
		}
		return mapRodError(el.Click(proto.InputMouseButtonLeft, 1))

	case ClickForced:
		_, err := el.Eval(`() => this.click()`)
		return mapRodError(err)

	case ClickCoordinate:
		if err := el.ScrollIntoView(); err != nil {
			return mapRodError(err)
		}
		shape, err := el.Shape()
		if err != nil {
			return mapRodError(err)
		}
		box := shape.Box()
		pt := proto.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2}
		mouse := e.page.Context(ctx).Mouse
		if err := mouse.MoveTo(pt); err != nil {
			return mapRodError(err)
		}
		return mapRodError(mouse.Click(proto.InputMouseButtonLeft, 1))

	case ClickDispatch:
		_, err := el.Eval(`() => this.dispatchEvent(new MouseEvent('click', {bubbles: true, cancelable: true, view: window}))`)
		return mapRodError(err)

	default:
		return fmt.Errorf("unknown click strategy %q", strategy)
	}
}

func (e *rodElement) ScrollBy(ctx context.Context, dx, dy int) error {
	_, err := e.el.Context(ctx).Eval(fmt.Sprintf(`() => { this.scrollBy(%d, %d) }`, dx, dy))
	return mapRodError(err)
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	return mapRodError(e.el.Context(ctx).ScrollIntoView())
}

func unmarshalEval(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode eval result: %w", err)
	}
	return nil
}

// mapRodError normalises DevTools failures that mean the node handle is
// gone into ErrStaleElement so callers can re-resolve and retry.
func mapRodError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Cannot find context with specified id"),
		strings.Contains(msg, "Node with given id does not exist"),
		strings.Contains(msg, "Object id doesn't reference a 'Node'"),
		strings.Contains(msg, "Could not find node with given id"),
		strings.Contains(msg, "Session closed"),
		strings.Contains(msg, "element is detached"):
		return fmt.Errorf("%w: %s", ErrStaleElement, msg)
	}
	return err
}
