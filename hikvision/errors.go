// Package hikvision decodes the proprietary on-disk structures of
// Hikvision DVR images: the Master Sector, the HIKBTREE index, the
// system log stream, and the IDR metadata that delimits recorded video.
package hikvision

import "errors"

var (
	ErrSignatureNotFound        = errors.New("hikvision: signature not found")
	ErrInvalidSignature         = errors.New("hikvision: invalid signature")
	ErrTruncatedField           = errors.New("hikvision: truncated field")
	ErrParse                    = errors.New("hikvision: parse error")
	ErrDependentMetadataMissing = errors.New("hikvision: required metadata missing from input document")
)
