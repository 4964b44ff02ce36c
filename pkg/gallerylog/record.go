package gallerylog

import (
	"fmt"
	"strings"
	"time"
)

// PlaceholderID marks a record whose download finished without the
// completion check confirming it. Placeholder records are present in
// the log but excluded from duplicate comparison until renumbered.
const PlaceholderID = 999999999

// timestampFormats are the accepted human date layouts, tried in
// order. The rendered text is preserved verbatim alongside the parsed
// value because identity comparison uses the text, not the time.
var timestampFormats = []string{
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04:05 PM",
	"January 2, 2006 3:04 PM",
	"2006-01-02 15:04:05",
	"1/2/2006, 3:04:05 PM",
}

// Record is one downloaded generation. Only ID, TimestampText and
// Prompt are persisted in the stanza format; the remaining fields
// describe the download within the current session.
type Record struct {
	ID            int
	TimestampText string
	Timestamp     time.Time
	Prompt        string

	FilePath         string
	OriginalFilename string
	FileSizeBytes    int64
	DownloadDuration time.Duration
}

// Placeholder reports whether the record's id is the reserved
// not-yet-finalized marker.
func (r *Record) Placeholder() bool {
	return r.ID == PlaceholderID
}

// ParseTimestamp parses a rendered timestamp line against the accepted
// layouts.
func ParseTimestamp(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range timestampFormats {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", text)
}

// ValidTimestampText reports whether text parses as a timestamp line.
func ValidTimestampText(text string) bool {
	_, err := ParseTimestamp(text)
	return err == nil
}
