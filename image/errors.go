package image

import "errors"

// Sentinel errors for image-layer failures. Callers should use errors.Is
// against these; wrapped with fmt.Errorf("...: %w", ...) at each call site.
var (
	ErrImageNotFound  = errors.New("image: file not found")
	ErrEwfUnavailable = errors.New("image: EWF segment set unavailable")
	ErrIO             = errors.New("image: I/O error")
	ErrNotOpen        = errors.New("image: reader not open")
)
