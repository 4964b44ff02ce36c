package fingerprint

import (
	"strings"
)

// PromptPrefixLen is how much of the prompt participates in identity.
// The UI truncates prompts differently between list and detail views,
// so identity only looks at the leading slice.
const PromptPrefixLen = 100

// minPrefixTolerance is the shortest prompt for which prefix-of
// matching is allowed. Below this, only exact equality counts, since
// very short prompts collide too easily.
const minPrefixTolerance = 20

// Fingerprint is the content-derived identity of a gallery item:
// the timestamp text as rendered plus the leading slice of the prompt.
// It is derived from extracted metadata, never stored on its own.
type Fingerprint struct {
	TimestampText string
	PromptPrefix  string
}

// New builds a fingerprint from raw extracted metadata. The prompt is
// trimmed and cut to PromptPrefixLen characters, never mid-rune.
func New(timestampText, prompt string) Fingerprint {
	p := strings.TrimSpace(prompt)
	if r := []rune(p); len(r) > PromptPrefixLen {
		p = string(r[:PromptPrefixLen])
	}
	return Fingerprint{
		TimestampText: strings.TrimSpace(timestampText),
		PromptPrefix:  p,
	}
}

// Matches reports whether two fingerprints identify the same item.
// Timestamps must match exactly. Prompt prefixes match exactly, or by
// one being a prefix of the other when the shorter side is long enough
// that a prefix collision is implausible.
func (f Fingerprint) Matches(other Fingerprint) bool {
	if f.TimestampText != other.TimestampText {
		return false
	}
	if f.PromptPrefix == other.PromptPrefix {
		return true
	}
	shorter, longer := f.PromptPrefix, other.PromptPrefix
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < minPrefixTolerance {
		return false
	}
	return strings.HasPrefix(longer, shorter)
}

// Key returns a string form usable as a map key for exact-identity
// sets (examined-item tracking). Prefix-tolerant comparison still goes
// through Matches.
func (f Fingerprint) Key() string {
	return f.TimestampText + "\x00" + f.PromptPrefix
}

// Zero reports whether the fingerprint carries no identity at all.
func (f Fingerprint) Zero() bool {
	return f.TimestampText == "" && f.PromptPrefix == ""
}
