package hikvision

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractVideoBlock_DropsLeadingJunkBeforeFirstStartCode(t *testing.T) {
	payload := []byte{
		0xAA, 0xBB, // leading junk, not part of any NAL unit
		0x00, 0x00, 0x00, 0x01, 0x67, 0xAA, 0xBB, 0xCC, // NAL 1
		0x00, 0x00, 0x00, 0x01, 0x68, 0xDD, 0xEE, // NAL 2
	}
	const blockSize = 512
	buf := make([]byte, blockSize)
	copy(buf, payload)
	recordAt := len(payload)
	buildIdrRecord(buf, recordAt, idrRecordSize, 1, 1, 1)

	r := &memReader{data: buf}
	outDir := t.TempDir()

	outPath, err := ExtractVideoBlock(r, "0x0", 0, blockSize, outDir)
	if err != nil {
		t.Fatalf("ExtractVideoBlock: %v", err)
	}

	want := filepath.Join(outDir, "video_block_at_0.h264")
	if outPath != want {
		t.Errorf("output path = %q, want %q", outPath, want)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading carved output: %v", err)
	}
	wantBytes := payload[2:] // the AA BB prefix must be dropped
	if !bytes.Equal(got, wantBytes) {
		t.Errorf("carved bytes = % X, want % X", got, wantBytes)
	}
}

func TestExtractVideoBlock_NoStartCodeFails(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	const blockSize = 512
	buf := make([]byte, blockSize)
	copy(buf, payload)
	buildIdrRecord(buf, len(payload), idrRecordSize, 1, 1, 1)

	r := &memReader{data: buf}
	outDir := t.TempDir()

	if _, err := ExtractVideoBlock(r, "0x0", 0, blockSize, outDir); err == nil {
		t.Fatal("expected an error when no H.264 start code is present")
	}
}

func TestExtractVideoBlock_NoIdrRecordFails(t *testing.T) {
	const blockSize = 512
	buf := make([]byte, blockSize)
	copy(buf, []byte{0x00, 0x00, 0x00, 0x01, 0x67})

	r := &memReader{data: buf}
	outDir := t.TempDir()

	if _, err := ExtractVideoBlock(r, "0x0", 0, blockSize, outDir); err == nil {
		t.Fatal("expected an error when no IDR record bounds the block")
	}
}
