package hikvision

import (
	"fmt"
	"strings"
	"time"
)

// invalidTimestamp is the rendering used for sentinel/unset timestamps.
const invalidTimestamp = "Invalid/Not Set"

// FormatTimestamp renders a Unix-seconds value the way every timestamp in
// the emitted documents is rendered. 0 means unset; 0x7FFFFFFF and above
// (which subsumes the common 0xFFFFFFFF sentinel) means not-a-real-time.
func FormatTimestamp(value uint32) string {
	if value == 0 || value >= 0x7FFFFFFF {
		return invalidTimestamp
	}
	return time.Unix(int64(value), 0).UTC().Format("2006-01-02 15:04:05 UTC")
}

// formatHexBytes renders raw bytes as space-separated uppercase hex, the
// way raw_bytes fields are rendered in every document.
func formatHexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

// hexPreview renders up to n bytes of b as a raw_hex_preview string.
func hexPreview(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return formatHexBytes(b)
}
