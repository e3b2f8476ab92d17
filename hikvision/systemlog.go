package hikvision

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"

	"github.com/hikforensics/hikview/image"
)

var systemLogSignature = []byte{'R', 'A', 'T', 'S', 0x14, 0x00, 0x00, 0x00}

const minLogPayloadSize = 6

// LogEntry is one decoded system-log record.
type LogEntry struct {
	EntryNumber       int    `json:"entry_number"`
	Address           int64  `json:"address"`
	AddressHex        string `json:"address_hex"`
	TimestampUnix     uint32 `json:"timestamp_unix"`
	TimestampReadable string `json:"timestamp_readable"`
	LogTypeCode       uint16 `json:"log_type_code"`
	LogTypeName       string `json:"log_type_name"`
	Description       any    `json:"description"`
}

// LogHeaderInfo captures any bytes preceding the first log signature.
type LogHeaderInfo struct {
	StartAddress    int64  `json:"start_address"`
	StartAddressHex string `json:"start_address_hex"`
	SizeBytes       int    `json:"size_bytes"`
	RawHexPreview   string `json:"raw_hex_preview"`
}

// SystemLogDocument is the complete JSON document the "logs" operation emits.
type SystemLogDocument struct {
	ImageInfo     ImageInfo     `json:"image_info"`
	LogHeaderInfo LogHeaderInfo `json:"log_header_info"`
	SystemLogs    []LogEntry    `json:"system_logs"`
}

var logTypeNames = map[uint16]string{
	0x01: "Alarm",
	0x02: "Exception",
	0x03: "Operation",
	0x04: "Information",
}

// ParseSystemLogs frames and decodes the system log stream. A size of
// zero is a valid no-op: it yields an empty SystemLogDocument rather
// than an error.
func ParseSystemLogs(r image.Reader, systemLogsOffset, systemLogsSize uint64, extraOffset int64) (*SystemLogDocument, error) {
	doc := &SystemLogDocument{}
	if systemLogsSize == 0 {
		return doc, nil
	}

	base := int64(systemLogsOffset) + extraOffset
	block, err := r.ReadAt(base, int(systemLogsSize))
	if err != nil {
		return nil, fmt.Errorf("reading system log block at 0x%X: %w", base, err)
	}

	firstSig := bytes.Index(block, systemLogSignature)
	if firstSig < 0 {
		return doc, nil
	}
	if firstSig > 0 {
		doc.LogHeaderInfo = LogHeaderInfo{
			StartAddress:    base,
			StartAddressHex: fmt.Sprintf("0x%X", base),
			SizeBytes:       firstSig,
			RawHexPreview:   hexPreview(block[:firstSig], 128),
		}
	}

	entryNumber := 0
	pos := firstSig
	for pos < len(block) {
		if !bytes.HasPrefix(block[pos:], systemLogSignature) {
			pos++
			continue
		}
		payloadStart := pos + len(systemLogSignature)
		payloadEnd := len(block)
		if next := bytes.Index(block[payloadStart:], systemLogSignature); next >= 0 {
			payloadEnd = payloadStart + next
		}
		payload := block[payloadStart:payloadEnd]
		if len(payload) < minLogPayloadSize {
			pos++
			continue
		}

		entryNumber++
		addr := base + int64(pos)
		timestamp := binary.LittleEndian.Uint32(payload[0:4])
		logType := binary.LittleEndian.Uint16(payload[4:6])
		description := decodeLogDescription(logType, payload[6:])

		doc.SystemLogs = append(doc.SystemLogs, LogEntry{
			EntryNumber:       entryNumber,
			Address:           addr,
			AddressHex:        fmt.Sprintf("0x%X", addr),
			TimestampUnix:     timestamp,
			TimestampReadable: FormatTimestamp(timestamp),
			LogTypeCode:       logType,
			LogTypeName:       logTypeName(logType),
			Description:       description,
		})
		pos = payloadEnd
	}

	return doc, nil
}

func logTypeName(code uint16) string {
	if name, ok := logTypeNames[code]; ok {
		return name
	}
	return "Unknown"
}

func decodeLogDescription(logType uint16, desc []byte) any {
	switch logType {
	case 0x01:
		return decodeAlarmLog(desc)
	case 0x02:
		return decodeExceptionLog(desc)
	case 0x03:
		return decodeOperationLog(desc)
	case 0x04:
		return decodeInformationLog(desc)
	default:
		return decodeGenericLog(desc)
	}
}

// AlarmDescription is the fixed decode for motion-alarm log entries.
type AlarmDescription struct {
	ParsedType    string `json:"parsed_type"`
	Details       string `json:"details"`
	RawHexPreview string `json:"raw_hex_preview"`
}

func decodeAlarmLog(desc []byte) AlarmDescription {
	return AlarmDescription{
		ParsedType:    "Motion Alarm",
		Details:       "Motion detected.",
		RawHexPreview: hexPreview(desc, 128),
	}
}

// ExceptionDetails carries the sub-fields of an exception log entry.
type ExceptionDetails struct {
	ExceptionType string `json:"exception_type"`
	Channel       uint32 `json:"channel,omitempty"`
}

// ExceptionDescription is the decode for device-exception log entries.
// Anything that doesn't match a known exception pattern falls back to
// decodeGenericLog instead of this type (see decodeExceptionLog).
type ExceptionDescription struct {
	ParsedType string            `json:"parsed_type"`
	Details    *ExceptionDetails `json:"details,omitempty"`
}

const exceptionChannelOffset = 68

func decodeExceptionLog(desc []byte) any {
	if len(desc) > 0 && desc[0] == 0x27 {
		var channel uint32
		if len(desc) >= exceptionChannelOffset+4 {
			channel = binary.LittleEndian.Uint32(desc[exceptionChannelOffset : exceptionChannelOffset+4])
		}
		return ExceptionDescription{
			ParsedType: "Video Exception",
			Details:    &ExceptionDetails{ExceptionType: "Video Loss", Channel: channel},
		}
	}
	return decodeGenericLog(desc)
}

// OperationDetails carries the sub-fields of an operation log entry.
type OperationDetails struct {
	ModelNumber  string `json:"model_number,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Username     string `json:"username,omitempty"`
}

// OperationDescription is the decode for operation log entries. Anything
// that doesn't match a known operation pattern falls back to
// decodeGenericLog instead of this type (see decodeOperationLog).
type OperationDescription struct {
	ParsedType string            `json:"parsed_type"`
	Details    *OperationDetails `json:"details,omitempty"`
}

var (
	modelNumberRe  = regexp.MustCompile(`DS-[\w-]{4,}`)
	serialNumberRe = regexp.MustCompile(`CCWR[\w]+`)
)

func decodeOperationLog(desc []byte) any {
	switch {
	case bytes.Contains(desc, []byte("DS-")):
		details := &OperationDetails{}
		if m := modelNumberRe.Find(desc); m != nil {
			details.ModelNumber = string(m)
		}
		if m := serialNumberRe.Find(desc); m != nil {
			details.SerialNumber = string(m)
		}
		return OperationDescription{ParsedType: "System Startup", Details: details}
	case bytes.Contains(desc, []byte("admin")):
		return OperationDescription{ParsedType: "User Login", Details: &OperationDetails{Username: "admin"}}
	case bytes.HasPrefix(desc, []byte{0x43, 0x00, 0x00, 0x00}):
		return OperationDescription{ParsedType: "Start Recording"}
	case bytes.HasPrefix(desc, []byte{0x54, 0x00, 0x00, 0x00}):
		return OperationDescription{ParsedType: "Configuration Operation"}
	default:
		return decodeGenericLog(desc)
	}
}

// InformationDetails carries the sub-fields of an information log entry.
type InformationDetails struct {
	DiskModel    string `json:"disk_model,omitempty"`
	Firmware     string `json:"firmware,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Counter1     uint32 `json:"counter_1,omitempty"`
	Counter2     uint32 `json:"counter_2,omitempty"`
}

// InformationDescription is the decode for information log entries.
// Anything that doesn't match a known information sub-type falls back to
// decodeGenericLog instead of this type (see decodeInformationLog).
type InformationDescription struct {
	ParsedType string              `json:"parsed_type"`
	Details    *InformationDetails `json:"details,omitempty"`
}

const (
	statsCounter1Offset = 52
	statsCounter2Offset = 88
)

func decodeInformationLog(desc []byte) any {
	if len(desc) == 0 {
		return decodeGenericLog(desc)
	}
	switch desc[0] {
	case 0xA1, 0xA2:
		return InformationDescription{ParsedType: "HDD Information", Details: classifyHDDStrings(extractStrings(desc))}
	case 0xAA:
		details := &InformationDetails{}
		if len(desc) >= statsCounter1Offset+4 {
			details.Counter1 = binary.LittleEndian.Uint32(desc[statsCounter1Offset : statsCounter1Offset+4])
		}
		if len(desc) >= statsCounter2Offset+4 {
			details.Counter2 = binary.LittleEndian.Uint32(desc[statsCounter2Offset : statsCounter2Offset+4])
		}
		return InformationDescription{ParsedType: "Periodic Statistics", Details: details}
	default:
		return decodeGenericLog(desc)
	}
}

func classifyHDDStrings(strs []string) *InformationDetails {
	details := &InformationDetails{}
	for _, s := range strs {
		switch {
		case details.DiskModel == "" && (hasPrefixFold(s, "ST") || hasPrefixFold(s, "WD")):
			details.DiskModel = s
		case details.SerialNumber == "" && len(s) > 6 && hasDigit(s) && hasAlpha(s):
			details.SerialNumber = s
		case details.Firmware == "" && len(s) >= 4 && len(s) <= 7:
			details.Firmware = s
		}
	}
	return details
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func hasDigit(s string) bool {
	for _, c := range s {
		if c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

func hasAlpha(s string) bool {
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}

// GenericDescription is the fallback decode for unrecognised log types and
// unrecognised sub-patterns within a known type.
type GenericDescription struct {
	ParsedType       string   `json:"parsed_type"`
	ExtractedStrings []string `json:"extracted_strings,omitempty"`
	RawHexPreview    string   `json:"raw_hex_preview"`
}

func decodeGenericLog(desc []byte) GenericDescription {
	return GenericDescription{
		ParsedType:       "Unknown",
		ExtractedStrings: extractStrings(desc),
		RawHexPreview:    hexPreview(desc, 128),
	}
}
