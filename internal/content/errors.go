package content

import "errors"

// Sentinel errors for content operations.
var (
	ErrContentParse  = errors.New("content parse failed")
	ErrMissingTitle  = errors.New("front-matter missing title")
	ErrInvalidDate   = errors.New("front-matter date is unparseable")
	ErrDuplicateSlug = errors.New("duplicate slug")
	ErrPostNotFound  = errors.New("post not found")
	ErrContentDir    = errors.New("content directory unreadable")
)
