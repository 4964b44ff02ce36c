package fingerprint

import (
	"gallerydl/pkg/config"
	"gallerydl/pkg/logger"
)

// Decision is the outcome of classifying an item against known history.
type Decision int

const (
	// DecisionNew means the item has never been downloaded.
	DecisionNew Decision = iota
	// DecisionDuplicate means the item matches a previously downloaded
	// record and the session should act per its duplicate mode.
	DecisionDuplicate
	// DecisionExpectedDuplicate means the duplicate was anticipated
	// because the session just resumed at a boundary; skip forward
	// without treating it as a fresh stop or resync condition.
	DecisionExpectedDuplicate
)

func (d Decision) String() string {
	switch d {
	case DecisionNew:
		return "new"
	case DecisionDuplicate:
		return "duplicate"
	case DecisionExpectedDuplicate:
		return "expected-duplicate"
	default:
		return "unknown"
	}
}

// Policy classifies item fingerprints against the set of fingerprints
// known from the download log and from downloads made this session.
// It also carries the one-shot resume suppression flag armed by the
// boundary scanner.
type Policy struct {
	mode    config.DuplicateMode
	known   []Fingerprint
	log     logger.Logger
	resumed bool
}

// NewPolicy builds a policy for the given duplicate mode.
func NewPolicy(mode config.DuplicateMode, log logger.Logger) *Policy {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Policy{mode: mode, log: log}
}

// Mode returns the configured duplicate mode.
func (p *Policy) Mode() config.DuplicateMode { return p.mode }

// Seed replaces the known-fingerprint set. Called once at session
// start from the loaded log, with placeholder records already filtered
// out by the caller.
func (p *Policy) Seed(fps []Fingerprint) {
	p.known = append(p.known[:0], fps...)
}

// Remember adds a fingerprint downloaded this session, so later
// classifications in the same run see it.
func (p *Policy) Remember(fp Fingerprint) {
	p.known = append(p.known, fp)
}

// ArmResumeSuppression marks that the session just re-entered at a
// boundary. The flag is consumed by the very next Classify call only.
func (p *Policy) ArmResumeSuppression() {
	p.resumed = true
}

// Classify decides whether fp is new or previously downloaded. If the
// resume suppression flag is armed it is consumed here, turning a
// duplicate into an expected duplicate and a miss back into a plain
// New.
func (p *Policy) Classify(fp Fingerprint) Decision {
	suppress := p.resumed
	p.resumed = false

	for _, k := range p.known {
		if fp.Matches(k) {
			if suppress {
				p.log.WithField("timestamp", fp.TimestampText).
					Debug("duplicate expected after boundary re-entry, skipping")
				return DecisionExpectedDuplicate
			}
			return DecisionDuplicate
		}
	}
	return DecisionNew
}

// Known reports whether fp matches any known fingerprint, without
// touching the suppression flag. The boundary scanner uses this for
// its overview comparisons.
func (p *Policy) Known(fp Fingerprint) bool {
	for _, k := range p.known {
		if fp.Matches(k) {
			return true
		}
	}
	return false
}
