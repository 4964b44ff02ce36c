package extract

import (
	"context"
	"strings"

	"gallerydl/pkg/browser"
)

// identityTextLen bounds how much item text participates in identity.
const identityTextLen = 120

// ItemIdentity derives a stable identity string for an overview list
// item. DOM ids are ephemeral in a virtualized list, so identity comes
// from content: the item's link target when present, otherwise a slice
// of its rendered text. Returns "" when the item exposes nothing
// usable; callers must skip such items rather than treat them as seen.
func ItemIdentity(ctx context.Context, el browser.Element) string {
	if href, ok, err := el.Attribute(ctx, "href"); err == nil && ok && href != "" {
		return "href:" + href
	}

	if links, err := el.Elements(ctx, "a[href]"); err == nil && len(links) > 0 {
		if href, ok, err := links[0].Attribute(ctx, "href"); err == nil && ok && href != "" {
			return "href:" + href
		}
	}

	text, err := el.Text(ctx)
	if err != nil {
		return ""
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	if r := []rune(text); len(r) > identityTextLen {
		text = string(r[:identityTextLen])
	}
	return "text:" + text
}
