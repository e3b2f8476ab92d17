package hikvision

import "testing"

func buildIdrRecord(buf []byte, at int, recSize uint32, frameIndex uint32, channel uint8, ts uint32) {
	copy(buf[at:], idrSignature)
	putU32(buf, at+4, recSize)
	putU32(buf, at+12, frameIndex)
	buf[at+16] = channel
	putU32(buf, at+24, ts)
}

func TestParseDataBlockIdrTable_TailScan(t *testing.T) {
	const blockSize = 1 << 20 // 1 MiB
	buf := make([]byte, blockSize)
	const recOffset = 0xFFF00
	buildIdrRecord(buf, recOffset, idrRecordSize, 42, 1, 0x5F000000)

	r := &memReader{data: buf}
	records, err := ParseDataBlockIdrTable(r, 0, blockSize)
	if err != nil {
		t.Fatalf("ParseDataBlockIdrTable: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Address != recOffset {
		t.Errorf("address = 0x%X, want 0x%X", rec.Address, recOffset)
	}
	if rec.FrameIndex != 42 {
		t.Errorf("frame_index = %d, want 42", rec.FrameIndex)
	}
	if rec.Channel != 1 {
		t.Errorf("channel = %d, want 1", rec.Channel)
	}
	if rec.TimestampUnix != 0x5F000000 {
		t.Errorf("timestamp = 0x%X, want 0x5F000000", rec.TimestampUnix)
	}
}

func TestParseDataBlockIdrTable_BlockOffsetNonZero(t *testing.T) {
	const blockSize = 1 << 20
	const blockStart = 0x40000
	buf := make([]byte, blockStart+blockSize)
	buildIdrRecord(buf, blockStart+0x500, idrRecordSize, 7, 2, 123)

	r := &memReader{data: buf}
	records, err := ParseDataBlockIdrTable(r, blockStart, blockSize)
	if err != nil {
		t.Fatalf("ParseDataBlockIdrTable: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Address != blockStart+0x500 {
		t.Errorf("address = 0x%X, want 0x%X", records[0].Address, blockStart+0x500)
	}
}

func TestParseDataBlockIdrTable_WrongRecSizeAborts(t *testing.T) {
	const blockSize = 4096
	buf := make([]byte, blockSize)
	buildIdrRecord(buf, 100, 64, 1, 1, 1) // recSize != idrRecordSize

	r := &memReader{data: buf}
	records, err := ParseDataBlockIdrTable(r, 0, blockSize)
	if err != nil {
		t.Fatalf("ParseDataBlockIdrTable: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0 (bad rec_size should abort the walk)", len(records))
	}
}

func TestParseDataBlockIdrTable_NoSignatureIsEmpty(t *testing.T) {
	const blockSize = 4096
	buf := make([]byte, blockSize)
	r := &memReader{data: buf}
	records, err := ParseDataBlockIdrTable(r, 0, blockSize)
	if err != nil {
		t.Fatalf("ParseDataBlockIdrTable: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}
