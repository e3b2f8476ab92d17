package hikvision

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hikforensics/hikview/image"
	"github.com/hikforensics/hikview/internal/applog"
)

var pkgLog = applog.New("hikview/hikvision")

// masterSearchStart is the absolute offset where the signature search
// window begins; 0x200 is the first sector past the boot sector on a
// typical Hikvision DVR image.
const masterSearchStart = 0x200

const masterSearchWindow = 4096
const masterDescriptorSize = 512

var masterSignature = []byte("HIKVISION@HANGZHOU")

// MasterSector is the decoded global metadata anchored by the Hikvision
// filesystem signature.
type MasterSector struct {
	ExtraOffset      int64         `json:"extra_offset"`
	SignatureAddress int64         `json:"signature_address"`
	DiskCapacity     NumericField  `json:"disk_capacity"`
	SystemLogsOffset NumericField  `json:"system_logs_offset"`
	SystemLogsSize   NumericField  `json:"system_logs_size"`
	VideoDataOffset  NumericField  `json:"video_data_offset"`
	DataBlockSize    NumericField  `json:"data_block_size"`
	TotalDataBlocks  NumericField  `json:"total_data_blocks"`
	Hikbtree1Offset  NumericField  `json:"hikbtree1_offset"`
	Hikbtree1Size    NumericField  `json:"hikbtree1_size"`
	Hikbtree2Offset  NumericField  `json:"hikbtree2_offset"`
	Hikbtree2Size    NumericField  `json:"hikbtree2_size"`
	SystemInitTime   TimeField     `json:"system_init_time"`
}

// MasterDocument is the complete JSON document the "master" operation emits.
type MasterDocument struct {
	ImageInfo    ImageInfo    `json:"image_info"`
	MasterSector MasterSector `json:"master_sector"`
}

// fieldCursor walks the master descriptor buffer, accumulating offsets the
// way the on-disk layout is specified: each field's displacement is
// relative to the end of the previous field (or the signature, for the
// first field).
type fieldCursor struct {
	buf []byte
	pos int
}

func (c *fieldCursor) next(gap, width int) ([]byte, int, error) {
	c.pos += gap
	if c.pos+width > len(c.buf) {
		return nil, 0, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedField, width, c.pos, len(c.buf))
	}
	field := c.buf[c.pos : c.pos+width]
	start := c.pos
	c.pos += width
	return field, start, nil
}

// ParseMasterSector locates the Hikvision signature and decodes the
// fixed-layout master descriptor that follows it.
func ParseMasterSector(r image.Reader) (*MasterSector, error) {
	window, err := r.ReadAt(masterSearchStart, masterSearchWindow)
	if err != nil {
		return nil, fmt.Errorf("reading master signature search window: %w", err)
	}
	idx := bytes.Index(window, masterSignature)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q not found in first %d bytes past 0x%X", ErrSignatureNotFound, masterSignature, masterSearchWindow, masterSearchStart)
	}

	sigAbs := int64(masterSearchStart + idx)
	extraOffset := sigAbs - masterSearchStart

	desc, err := r.ReadAt(sigAbs, masterDescriptorSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading master descriptor at 0x%X: %v", ErrTruncatedField, sigAbs, err)
	}

	cur := &fieldCursor{buf: desc, pos: len(masterSignature)}

	readU64 := func(gap int) (NumericField, error) {
		raw, start, err := cur.next(gap, 8)
		if err != nil {
			return NumericField{}, err
		}
		v := binary.LittleEndian.Uint64(raw)
		return newNumericField(v, sigAbs+int64(start), raw), nil
	}
	readU32 := func(gap int) (NumericField, error) {
		raw, start, err := cur.next(gap, 4)
		if err != nil {
			return NumericField{}, err
		}
		v := binary.LittleEndian.Uint32(raw)
		return newNumericField(uint64(v), sigAbs+int64(start), raw), nil
	}

	ms := &MasterSector{ExtraOffset: extraOffset, SignatureAddress: sigAbs}

	if ms.DiskCapacity, err = readU64(38); err != nil {
		return nil, err
	}
	if ms.SystemLogsOffset, err = readU64(16); err != nil {
		return nil, err
	}
	if ms.SystemLogsSize, err = readU64(0); err != nil {
		return nil, err
	}
	if ms.VideoDataOffset, err = readU64(8); err != nil {
		return nil, err
	}
	if ms.DataBlockSize, err = readU64(8); err != nil {
		return nil, err
	}
	if ms.TotalDataBlocks, err = readU32(0); err != nil {
		return nil, err
	}
	if ms.Hikbtree1Offset, err = readU64(4); err != nil {
		return nil, err
	}
	if ms.Hikbtree1Size, err = readU32(0); err != nil {
		return nil, err
	}
	if ms.Hikbtree2Offset, err = readU64(4); err != nil {
		return nil, err
	}
	if ms.Hikbtree2Size, err = readU32(0); err != nil {
		return nil, err
	}

	rawTime, start, err := cur.next(60, 4)
	if err != nil {
		return nil, err
	}
	initTime := binary.LittleEndian.Uint32(rawTime)
	ms.SystemInitTime = newTimeField(initTime, sigAbs+int64(start), rawTime)

	return ms, nil
}

// BuildMasterDocument runs ParseMasterSector and wraps the result with
// image_info the way the "master" CLI operation emits it.
func BuildMasterDocument(r image.Reader, path string, caseInfo any) (*MasterDocument, error) {
	ms, err := ParseMasterSector(r)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	pkgLog.Debugf(nil, "master sector anchored at 0x%X, extra_offset=0x%X", ms.SignatureAddress, ms.ExtraOffset)
	return &MasterDocument{
		ImageInfo: ImageInfo{
			Filename:  filepath.Base(path),
			FullPath:  abs,
			SizeBytes: r.Size(),
			CaseInfo:  caseInfo,
		},
		MasterSector: *ms,
	}, nil
}

// LoadMasterDocument reads back a master document previously written to
// disk, the file-handoff input every other operation depends on.
func LoadMasterDocument(path string) (*MasterDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading master document %s: %v", ErrDependentMetadataMissing, path, err)
	}
	var doc MasterDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing master document %s: %v", ErrDependentMetadataMissing, path, err)
	}
	return &doc, nil
}
