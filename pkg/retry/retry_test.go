package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "gallerydl/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			delay := backoff.NextDelay(test.attempt)
			if delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 50 * time.Millisecond}
	for attempt := 1; attempt <= 3; attempt++ {
		if d := backoff.NextDelay(attempt); d != 50*time.Millisecond {
			t.Errorf("Expected constant delay, got %v on attempt %d", d, attempt)
		}
	}
	if d := backoff.NextDelay(0); d != 0 {
		t.Errorf("Expected zero delay for attempt 0, got %v", d)
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	if err := Do(op, cfg); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		return errors.New("persistent error")
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	if err := Do(op, cfg); err == nil {
		t.Fatal("Expected error after exceeding max attempts")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryNotRetryable(t *testing.T) {
	attempts := 0
	terminal := errs.Terminal(errs.PhaseBoundary, "", "scan exhausted", nil)
	op := func() error {
		attempts++
		return terminal
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}

	err := Do(op, cfg)
	if !errors.Is(err, terminal) {
		t.Fatalf("Expected terminal error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for a terminal error, got %d", attempts)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := func() error { return errors.New("error") }
	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 100 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     ctx,
	}

	if err := Do(op, cfg); err == nil {
		t.Fatal("Expected cancellation error")
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("temporary error")
		}
		return 42, nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	result, err := DoWithResult(op, cfg)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}
}

func TestChainFirstStrategyWins(t *testing.T) {
	ran := []string{}
	chain := NewChain("test", nil,
		Strategy{Name: "first", Run: func() error { ran = append(ran, "first"); return nil }},
		Strategy{Name: "second", Run: func() error { ran = append(ran, "second"); return nil }},
	)

	name, err := chain.Run()
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if name != "first" {
		t.Errorf("Expected first strategy to win, got %s", name)
	}
	if len(ran) != 1 {
		t.Errorf("Expected only one strategy to run, got %v", ran)
	}
}

func TestChainFallsThrough(t *testing.T) {
	chain := NewChain("test", nil,
		Strategy{Name: "broken", Run: func() error { return errors.New("nope") }},
		Strategy{Name: "working", Run: func() error { return nil }},
	)

	name, err := chain.Run()
	if err != nil {
		t.Fatalf("Expected fallthrough success, got %v", err)
	}
	if name != "working" {
		t.Errorf("Expected working strategy, got %s", name)
	}
}

func TestChainExhausted(t *testing.T) {
	chain := NewChain("test", nil,
		Strategy{Name: "a", Run: func() error { return errors.New("fail a") }},
		Strategy{Name: "b", Run: func() error { return errors.New("fail b") }},
	)

	_, err := chain.Run()
	if !errors.Is(err, ErrChainExhausted) {
		t.Fatalf("Expected ErrChainExhausted, got %v", err)
	}
}

func TestChainAbortIf(t *testing.T) {
	fatal := errors.New("detached")
	ran := []string{}
	chain := NewChain("test", nil,
		Strategy{Name: "a", Run: func() error { ran = append(ran, "a"); return fatal }},
		Strategy{Name: "b", Run: func() error { ran = append(ran, "b"); return nil }},
	).AbortIf(func(err error) bool { return errors.Is(err, fatal) })

	_, err := chain.Run()
	if !errors.Is(err, fatal) {
		t.Fatalf("Expected abort error, got %v", err)
	}
	if len(ran) != 1 {
		t.Errorf("Expected chain to stop after abort, ran %v", ran)
	}
}
