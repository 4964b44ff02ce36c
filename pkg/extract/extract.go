package extract

import (
	"context"
	"errors"
	"strings"
	"time"

	"gallerydl/pkg/browser"
	"gallerydl/pkg/config"
	"gallerydl/pkg/gallerylog"
	"gallerydl/pkg/logger"
)

// ErrUnknown means no candidate survived filtering. Callers must treat
// it as "cannot fingerprint this item", never as "item is new".
var ErrUnknown = errors.New("extract: metadata unknown")

// Metadata is what extraction recovers from an item's markup.
type Metadata struct {
	TimestampText string
	Timestamp     time.Time
	Prompt        string
}

// Extractor pulls (timestamp, prompt) out of gallery markup. The same
// policy runs against detail views and overview list items; only the
// scope passed in differs.
type Extractor struct {
	cfg *config.GalleryConfig
	log logger.Logger
}

func New(cfg *config.GalleryConfig, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{cfg: cfg, log: log}
}

// Extract recovers metadata for the item under scope. page is used to
// measure how common each timestamp candidate's text is across the
// whole document; list and detail templates repeat metadata rows, so
// rarity separates the active item's row from leftovers. page may be
// nil, in which case rarity is not scored.
func (e *Extractor) Extract(ctx context.Context, scope browser.Scope, page browser.Scope) (Metadata, error) {
	tsText, ts, err := e.extractTimestamp(ctx, scope, page)
	if err != nil {
		return Metadata{}, err
	}
	prompt, err := e.extractPrompt(ctx, scope)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{TimestampText: tsText, Timestamp: ts, Prompt: prompt}, nil
}

type tsCandidate struct {
	text  string
	ts    time.Time
	score float64
}

func (e *Extractor) extractTimestamp(ctx context.Context, scope, page browser.Scope) (string, time.Time, error) {
	els, err := scope.Elements(ctx, e.cfg.DetailSelector)
	if err != nil {
		return "", time.Time{}, err
	}

	pageCounts := map[string]int{}
	if page != nil {
		pageEls, err := page.Elements(ctx, e.cfg.DetailSelector)
		if err == nil {
			for _, el := range pageEls {
				if text, ok := e.timestampFromRow(ctx, el); ok {
					pageCounts[text]++
				}
			}
		}
	}

	var candidates []tsCandidate
	for _, el := range els {
		text, ok := e.timestampFromRow(ctx, el)
		if !ok {
			continue
		}
		c := tsCandidate{text: text}

		if vis, err := el.Visible(ctx); err == nil && vis {
			c.score += 3
		}
		if n := pageCounts[text]; n > 1 {
			// Text repeated across the page belongs to template
			// leftovers more often than to the active item.
			c.score += 2.0 / float64(n)
		} else {
			c.score += 2
		}
		if ts, err := gallerylog.ParseTimestamp(text); err == nil {
			c.ts = ts
			c.score += 1
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return "", time.Time{}, ErrUnknown
	}

	// Recency breaks near-ties among parseable candidates.
	var newest time.Time
	for _, c := range candidates {
		if c.ts.After(newest) {
			newest = c.ts
		}
	}
	best := -1
	for i := range candidates {
		if !candidates[i].ts.IsZero() && candidates[i].ts.Equal(newest) {
			candidates[i].score += 0.5
		}
		if best < 0 || candidates[i].score > candidates[best].score {
			best = i
		}
	}

	// The winning text stands even when it does not parse as a date;
	// identity comparison runs over the rendered text, and the zero
	// Timestamp only costs ordering precision in the log.
	won := candidates[best]
	return won.text, won.ts, nil
}

// timestampFromRow pulls the date text out of a metadata row. Rows
// render as a label followed by the value, so the label text is
// stripped and the remainder must look like a date.
func (e *Extractor) timestampFromRow(ctx context.Context, el browser.Element) (string, bool) {
	text, err := el.Text(ctx)
	if err != nil {
		return "", false
	}
	text = strings.TrimSpace(text)
	if e.cfg.TimestampLabel != "" {
		idx := strings.Index(text, e.cfg.TimestampLabel)
		if idx < 0 {
			return "", false
		}
		text = strings.TrimSpace(text[idx+len(e.cfg.TimestampLabel):])
		text = strings.TrimLeft(text, ":")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return "", false
	}
	return text, true
}

func (e *Extractor) extractPrompt(ctx context.Context, scope browser.Scope) (string, error) {
	els, err := scope.Elements(ctx, e.cfg.PromptSelector)
	if err != nil {
		return "", err
	}

	longest := ""
	for _, el := range els {
		vis, err := el.Visible(ctx)
		if err != nil || !vis {
			continue
		}
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) <= len(longest) {
			continue
		}
		if !PlausiblePrompt(text) {
			continue
		}
		longest = text
	}

	if longest == "" {
		return "", ErrUnknown
	}
	return longest, nil
}
