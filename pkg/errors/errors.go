package errors

import "fmt"

// Kind classifies how far an error is allowed to propagate. Soft errors are
// logged and counted, item errors consume the consecutive-failure budget,
// terminal errors end the session.
type Kind string

const (
	KindSoft     Kind = "soft"
	KindItem     Kind = "item"
	KindTerminal Kind = "terminal"
)

// Phase names the part of the crawl that produced an error.
type Phase string

const (
	PhaseExtract  Phase = "extract"
	PhaseAdvance  Phase = "advance"
	PhaseScroll   Phase = "scroll"
	PhaseActivate Phase = "activate"
	PhaseDownload Phase = "download"
	PhaseBoundary Phase = "boundary"
	PhaseLog      Phase = "log"
)

// Error carries enough context to reproduce a failure: which item, which
// phase, and the underlying cause. Driver errors never cross a package
// boundary without being wrapped into one of these.
type Error struct {
	Kind    Kind
	Phase   Phase
	ItemRef string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.ItemRef != "" {
		return fmt.Sprintf("%s error in %s (item %s): %s", e.Kind, e.Phase, e.ItemRef, e.Message)
	}
	return fmt.Sprintf("%s error in %s: %s", e.Kind, e.Phase, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Soft builds a recoverable error: logged, counted, execution continues.
func Soft(phase Phase, itemRef, message string, cause error) *Error {
	return &Error{Kind: KindSoft, Phase: phase, ItemRef: itemRef, Message: message, Cause: cause}
}

// Item builds an item-level failure: the item is skipped and the
// consecutive-failure budget is consumed.
func Item(phase Phase, itemRef, message string, cause error) *Error {
	return &Error{Kind: KindItem, Phase: phase, ItemRef: itemRef, Message: message, Cause: cause}
}

// Terminal builds a session-ending error.
func Terminal(phase Phase, itemRef, message string, cause error) *Error {
	return &Error{Kind: KindTerminal, Phase: phase, ItemRef: itemRef, Message: message, Cause: cause}
}

// IsTerminal reports whether err is a classified terminal error.
func IsTerminal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindTerminal
}
