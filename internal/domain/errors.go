package domain

import "errors"

// Error kinds recognised by the scoring core. Callers wrap them with context
// and match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrIneligibleState    = errors.New("ineligible state")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrPlatformPermission = errors.New("platform permission denied")
	ErrPlatformTimeout    = errors.New("platform call timed out")
	ErrBadConfig          = errors.New("bad config")
	ErrNoBand             = errors.New("no rating band for elo")
)
