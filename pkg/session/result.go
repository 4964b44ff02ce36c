package session

import (
	"time"

	errs "gallerydl/pkg/errors"
)

// ItemError is one classified failure attached to the session result.
type ItemError struct {
	ItemRef string    `json:"item_ref,omitempty"`
	Kind    errs.Kind `json:"kind"`
	Message string    `json:"message"`
}

// Result summarizes a crawl session.
type Result struct {
	Success             bool        `json:"success"`
	Reason              string      `json:"reason"`
	DownloadsCompleted  int         `json:"downloads_completed"`
	Errors              []ItemError `json:"errors,omitempty"`
	ScrollsPerformed    int         `json:"scrolls_performed"`
	ThumbnailsProcessed int         `json:"thumbnails_processed"`
	StartTime           time.Time   `json:"start_time"`
	EndTime             time.Time   `json:"end_time"`
}
