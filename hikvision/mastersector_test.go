package hikvision

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	qt "github.com/frankban/quicktest"
)

// buildMasterImage lays out a valid master sector at sigAbs within a
// buffer of the given total size, with the caller-supplied field values.
func buildMasterImage(t *testing.T, size int, sigAbs int, fields masterTestFields) []byte {
	t.Helper()
	buf := make([]byte, size)
	copy(buf[sigAbs:], masterSignature)

	rel := func(off int) int { return sigAbs + off }
	putU64(buf, rel(56), fields.diskCapacity)
	putU64(buf, rel(80), fields.systemLogsOffset)
	putU64(buf, rel(88), fields.systemLogsSize)
	putU64(buf, rel(104), fields.videoDataOffset)
	putU64(buf, rel(120), fields.dataBlockSize)
	putU32(buf, rel(128), fields.totalDataBlocks)
	putU64(buf, rel(136), fields.hikbtree1Offset)
	putU32(buf, rel(144), fields.hikbtree1Size)
	putU64(buf, rel(152), fields.hikbtree2Offset)
	putU32(buf, rel(160), fields.hikbtree2Size)
	putU32(buf, rel(224), fields.systemInitTime)
	return buf
}

type masterTestFields struct {
	diskCapacity     uint64
	systemLogsOffset uint64
	systemLogsSize   uint64
	videoDataOffset  uint64
	dataBlockSize    uint64
	totalDataBlocks  uint32
	hikbtree1Offset  uint64
	hikbtree1Size    uint32
	hikbtree2Offset  uint64
	hikbtree2Size    uint32
	systemInitTime   uint32
}

func TestParseMasterSector_AnchorOffset(t *testing.T) {
	// 256 zero bytes of prefix, then a valid master sector at 0x300:
	// extra_offset must come out to 0x100, signature_address to 0x300.
	fields := masterTestFields{
		diskCapacity:     0x1000000000,
		systemLogsOffset: 0x2000,
		systemLogsSize:   0x3000,
		videoDataOffset:  0x4000,
		dataBlockSize:    0x400000,
		totalDataBlocks:  10,
		hikbtree1Offset:  0x5000,
		hikbtree1Size:    0x1000,
		hikbtree2Offset:  0x6000,
		hikbtree2Size:    0x1000,
		systemInitTime:   1700000000,
	}
	buf := buildMasterImage(t, masterSearchStart+masterSearchWindow, 0x300, fields)
	r := &memReader{data: buf}

	ms, err := ParseMasterSector(r)
	if err != nil {
		t.Fatalf("ParseMasterSector: %v", err)
	}

	if ms.ExtraOffset != 0x100 {
		t.Errorf("extra_offset = 0x%X, want 0x100", ms.ExtraOffset)
	}
	if ms.SignatureAddress != 0x300 {
		t.Errorf("signature_address = 0x%X, want 0x300", ms.SignatureAddress)
	}
	if ms.DiskCapacity.Value != fields.diskCapacity {
		t.Errorf("disk_capacity = 0x%X, want 0x%X", ms.DiskCapacity.Value, fields.diskCapacity)
	}
	if ms.SystemLogsOffset.Value != fields.systemLogsOffset {
		t.Errorf("system_logs_offset = 0x%X, want 0x%X", ms.SystemLogsOffset.Value, fields.systemLogsOffset)
	}
	if ms.Hikbtree1Offset.Value != fields.hikbtree1Offset {
		t.Errorf("hikbtree1_offset = 0x%X, want 0x%X", ms.Hikbtree1Offset.Value, fields.hikbtree1Offset)
	}
	if ms.SystemInitTime.ValueUnix != fields.systemInitTime {
		t.Errorf("system_init_time = %d, want %d", ms.SystemInitTime.ValueUnix, fields.systemInitTime)
	}
	wantReadable := "2023-11-14 22:13:20 UTC"
	if ms.SystemInitTime.ValueReadable != wantReadable {
		t.Errorf("system_init_time readable = %q, want %q", ms.SystemInitTime.ValueReadable, wantReadable)
	}

	wantHikbtree2 := newNumericField(fields.hikbtree2Offset, ms.Hikbtree2Offset.Address, nil)
	wantHikbtree2.RawBytes = ms.Hikbtree2Offset.RawBytes // raw_bytes rendering isn't under test here
	if diff := cmp.Diff(wantHikbtree2, ms.Hikbtree2Offset); diff != "" {
		t.Errorf("hikbtree2_offset mismatch (-want +got):\n%s", diff)
	}

	// Invariant 1: every field's recorded address, re-read with the field's
	// width, decodes back to the reported value.
	raw, err := r.ReadAt(ms.DiskCapacity.Address, 8)
	if err != nil {
		t.Fatalf("re-reading disk_capacity: %v", err)
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(raw[i]) << (8 * i)
	}
	if v != ms.DiskCapacity.Value {
		t.Errorf("re-read disk_capacity = 0x%X, want 0x%X", v, ms.DiskCapacity.Value)
	}
}

func TestParseMasterSector_SignatureNotFound(t *testing.T) {
	c := qt.New(t)
	buf := make([]byte, 8192)
	r := &memReader{data: buf}
	_, err := ParseMasterSector(r)
	c.Assert(err, qt.ErrorIs, ErrSignatureNotFound)
}
