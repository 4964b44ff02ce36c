// Package boundary implements the exit-scan-return maneuver used in
// skip mode: when the crawl hits an already-downloaded item, leave the
// detail view, walk the overview list comparing rendered items against
// a freshly reloaded download log, and re-enter at the first item with
// no completed log entry.
//
// The scan tracks every examined identity so a virtualized list that
// re-renders nodes under the same positions can never make it loop;
// the examined set only grows. Exhausting the scroll budget without
// finding an undownloaded item is terminal, because the log can no
// longer be reconciled with the feed.
package boundary
