// Package fingerprint derives content-based identity for gallery items
// and decides what a duplicate means for the session.
//
// An item's fingerprint is its rendered timestamp text plus the first
// 100 characters of its prompt. DOM ids are useless as identity in a
// virtualized feed, and the same item renders with a truncated prompt
// in the list view and the full prompt in the detail view, so equality
// tolerates one side being a prefix of the other once the shorter side
// is long enough to make collisions implausible.
package fingerprint
