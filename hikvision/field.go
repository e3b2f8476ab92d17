package hikvision

import "fmt"

// NumericField is the provenance triple used throughout the master
// sector document: a decoded value, its hex rendering, the absolute
// address it was read from, and the raw bytes behind it.
type NumericField struct {
	Value      uint64 `json:"value"`
	ValueHex   string `json:"value_hex"`
	Address    int64  `json:"address"`
	AddressHex string `json:"address_hex"`
	RawBytes   string `json:"raw_bytes"`
}

func newNumericField(value uint64, address int64, raw []byte) NumericField {
	return NumericField{
		Value:      value,
		ValueHex:   fmt.Sprintf("0x%X", value),
		Address:    address,
		AddressHex: fmt.Sprintf("0x%X", address),
		RawBytes:   formatHexBytes(raw),
	}
}

// TimeField is like NumericField but renders its value as a UTC timestamp
// instead of a bare hex number.
type TimeField struct {
	ValueUnix     uint32 `json:"value_unix"`
	ValueReadable string `json:"value_readable"`
	Address       int64  `json:"address"`
	AddressHex    string `json:"address_hex"`
	RawBytes      string `json:"raw_bytes"`
}

func newTimeField(value uint32, address int64, raw []byte) TimeField {
	return TimeField{
		ValueUnix:     value,
		ValueReadable: FormatTimestamp(value),
		Address:       address,
		AddressHex:    fmt.Sprintf("0x%X", address),
		RawBytes:      formatHexBytes(raw),
	}
}

// ImageInfo describes the source image a document was produced from.
type ImageInfo struct {
	Filename  string `json:"filename"`
	FullPath  string `json:"full_path"`
	SizeBytes int64  `json:"size_bytes"`
	CaseInfo  any    `json:"case_info,omitempty"`
}
