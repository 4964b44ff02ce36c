package retry

import (
	"errors"
	"fmt"
	"strings"

	"gallerydl/pkg/logger"
)

// Strategy is one way of achieving an interaction: a click variant, a
// scroll method, a selector alternative. Chains try strategies in order
// until one succeeds.
type Strategy struct {
	Name string
	Run  func() error
}

// ErrChainExhausted is returned when every strategy in a chain failed.
var ErrChainExhausted = errors.New("all strategies exhausted")

// Chain is an ordered list of interaction strategies. It models the
// "if this fails, try it another way" pattern uniformly: the same shape
// covers click fallbacks, scroll fallbacks, and metadata selector search.
type Chain struct {
	what       string
	strategies []Strategy
	log        logger.Logger
	abortIf    func(error) bool
}

// NewChain builds a chain. what names the interaction for logging.
func NewChain(what string, log logger.Logger, strategies ...Strategy) *Chain {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Chain{what: what, strategies: strategies, log: log}
}

// AbortIf makes the chain stop at the first error matching the
// predicate instead of falling through to the next strategy. Used for
// failures no alternative strategy can fix, like a detached element.
func (c *Chain) AbortIf(fn func(error) bool) *Chain {
	c.abortIf = fn
	return c
}

// Run tries each strategy in order and returns the name of the first one
// that succeeds. When all fail, the error wraps ErrChainExhausted and
// records every attempt.
func (c *Chain) Run() (string, error) {
	var attempts []string

	for _, s := range c.strategies {
		err := s.Run()
		if err == nil {
			c.log.DebugWithFields("strategy succeeded", map[string]interface{}{
				"interaction": c.what,
				"strategy":    s.Name,
			})
			return s.Name, nil
		}

		if c.abortIf != nil && c.abortIf(err) {
			return "", err
		}

		attempts = append(attempts, fmt.Sprintf("%s: %v", s.Name, err))
		c.log.DebugWithFields("strategy failed, trying next", map[string]interface{}{
			"interaction": c.what,
			"strategy":    s.Name,
			"error":       err.Error(),
		})
	}

	return "", fmt.Errorf("%s: %w (%s)", c.what, ErrChainExhausted, strings.Join(attempts, "; "))
}
