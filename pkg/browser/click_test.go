package browser

import (
	"context"
	"errors"
	"testing"
)

func TestClickWithFallbackFirstStrategyWins(t *testing.T) {
	el := &FakeElement{IsVisible: true}

	got, err := ClickWithFallback(context.Background(), el, "open item", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != string(ClickPlain) {
		t.Errorf("expected plain click to land, got %q", got)
	}
	if el.ClickCount != 1 {
		t.Errorf("expected 1 click, got %d", el.ClickCount)
	}
}

func TestClickWithFallbackTriesStrategiesInOrder(t *testing.T) {
	var tried []ClickStrategy
	el := &FakeElement{
		IsVisible: true,
		ClickFn: func(s ClickStrategy) error {
			tried = append(tried, s)
			if s != ClickCoordinate {
				return errors.New("intercepted by overlay")
			}
			return nil
		},
	}

	got, err := ClickWithFallback(context.Background(), el, "open item", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != string(ClickCoordinate) {
		t.Errorf("expected coordinate click to land, got %q", got)
	}

	want := []ClickStrategy{ClickPlain, ClickForced, ClickCoordinate}
	if len(tried) != len(want) {
		t.Fatalf("expected %d attempts, got %d", len(want), len(tried))
	}
	for i := range want {
		if tried[i] != want[i] {
			t.Errorf("attempt %d: expected %q, got %q", i, want[i], tried[i])
		}
	}
}

func TestClickWithFallbackExhaustsAllStrategies(t *testing.T) {
	attempts := 0
	el := &FakeElement{
		IsVisible: true,
		ClickFn: func(s ClickStrategy) error {
			attempts++
			return errors.New("element obscured")
		},
	}

	_, err := ClickWithFallback(context.Background(), el, "open item", nil)
	if err == nil {
		t.Fatal("expected error after all strategies failed")
	}
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestClickWithFallbackAbortsOnStaleElement(t *testing.T) {
	el := &FakeElement{IsVisible: true, Detached: true}

	_, err := ClickWithFallback(context.Background(), el, "open item", nil)
	if !errors.Is(err, ErrStaleElement) {
		t.Fatalf("expected ErrStaleElement, got %v", err)
	}
	if el.ClickCount != 0 {
		t.Errorf("expected no successful clicks on a detached element, got %d", el.ClickCount)
	}
}
