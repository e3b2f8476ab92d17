package hikvision

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hikforensics/hikview/image"
)

var idrSignature = []byte("OFNI")

const (
	idrRecordSize   = 56
	idrTailScanSize = 10 * 1024 * 1024
)

// IdrRecord is one decoded IDR metadata record from a data block's tail table.
type IdrRecord struct {
	Address       int64
	FrameIndex    uint32
	Channel       uint8
	TimestampUnix uint32
}

// ParseDataBlockIdrTable scans the tail of a data block for its IDR
// metadata table, walking backwards from the last signature occurrence so
// the result is returned in ascending-address order.
func ParseDataBlockIdrTable(r image.Reader, blockStart int64, blockSize int64) ([]IdrRecord, error) {
	scanSize := blockSize
	if scanSize > idrTailScanSize {
		scanSize = idrTailScanSize
	}
	readStart := blockStart + blockSize - scanSize
	if readStart < blockStart {
		readStart = blockStart
	}
	readSize := blockStart + blockSize - readStart

	chunk, err := r.ReadAt(readStart, int(readSize))
	if err != nil {
		return nil, fmt.Errorf("reading IDR tail scan window at 0x%X: %w", readStart, err)
	}

	var records []IdrRecord
	searchEnd := len(chunk)
	for {
		idx := bytes.LastIndex(chunk[:searchEnd], idrSignature)
		if idx < 0 {
			break
		}
		if idx+idrRecordSize > len(chunk) {
			searchEnd = idx
			continue
		}
		rec := chunk[idx : idx+idrRecordSize]
		recSize := binary.LittleEndian.Uint32(rec[4:8])
		if recSize != idrRecordSize {
			pkgLog.Warningf(nil, "IDR record at 0x%X reports size %d, expected %d; stopping table walk", readStart+int64(idx), recSize, idrRecordSize)
			break
		}
		record := IdrRecord{
			Address:       readStart + int64(idx),
			FrameIndex:    binary.LittleEndian.Uint32(rec[12:16]),
			Channel:       rec[16],
			TimestampUnix: binary.LittleEndian.Uint32(rec[24:28]),
		}
		records = append([]IdrRecord{record}, records...)
		searchEnd = idx
	}
	return records, nil
}
