package hikvision

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hikforensics/hikview/image"
)

var h264StartCode = []byte{0x00, 0x00, 0x00, 0x01}

// ExtractVideoBlock carves a single data block's H.264 elementary stream
// and writes it to outputDir/video_block_at_<offset_hex>.h264.
//
// offsetHex is a user-supplied hex string naming the block's on-disk
// offset (before alignment correction); extraOffset is added to it the
// same way every other component applies the master-derived alignment.
func ExtractVideoBlock(r image.Reader, offsetHex string, extraOffset int64, dataBlockSize uint64, outputDir string) (string, error) {
	offset, err := strconv.ParseInt(strings.TrimPrefix(strings.ToLower(offsetHex), "0x"), 16, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid block offset %q: %v", ErrParse, offsetHex, err)
	}
	blockStart := offset + extraOffset

	records, err := ParseDataBlockIdrTable(r, blockStart, int64(dataBlockSize))
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: no IDR records found in data block at 0x%X", ErrParse, blockStart)
	}
	videoEnd := records[0].Address

	carveSize := videoEnd - blockStart
	if carveSize <= 0 {
		return "", fmt.Errorf("%w: computed non-positive carve size (%d) for block at 0x%X", ErrParse, carveSize, blockStart)
	}

	raw, err := r.ReadAt(blockStart, int(carveSize))
	if err != nil {
		return "", fmt.Errorf("reading data block payload at 0x%X: %w", blockStart, err)
	}

	cleaned, err := carveNALUnits(raw)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}
	safeOffset := strings.ToLower(strings.TrimPrefix(offsetHex, "0x"))
	outputPath := filepath.Join(outputDir, fmt.Sprintf("video_block_at_%s.h264", safeOffset))
	if err := os.WriteFile(outputPath, cleaned, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return outputPath, nil
}

// carveNALUnits drops any leading non-NAL bytes and concatenates every NAL
// unit found in raw, in on-disk order. Fails if no start code is present.
func carveNALUnits(raw []byte) ([]byte, error) {
	first := bytes.Index(raw, h264StartCode)
	if first < 0 {
		return nil, fmt.Errorf("%w: no H.264 start codes found in carved block", ErrParse)
	}
	return raw[first:], nil
}
