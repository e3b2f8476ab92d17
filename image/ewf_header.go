package image

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeUTF16 converts a BOM-prefixed UTF-16 byte slice (as EnCase header
// sections are sometimes encoded) to a UTF-8 string. bigEndian selects
// between the 0xfeff and 0xfffe byte orders.
func decodeUTF16(b []byte, bigEndian bool) string {
	order := unicode.LittleEndian
	if bigEndian {
		order = unicode.BigEndian
	}
	decoder := unicode.UTF16(order, unicode.ExpectBOM).NewDecoder()
	out, _, err := transform.Bytes(decoder, b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
