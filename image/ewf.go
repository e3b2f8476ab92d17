package image

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hikforensics/hikview/internal/applog"
)

var ewfLog = applog.New("hikview/image")

const maxChunkCacheEntries = 1024

// evfFileHeader is the 13-byte header at the start of every EWF segment file.
type evfFileHeader struct {
	Signature     [8]byte
	FieldsStart   uint8
	SegmentNumber uint16
	FieldsEnd     uint16
}

var evfSignature = [8]byte{'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00}

// sectionHeader is the 76-byte section descriptor preceding every EWF section.
type sectionHeader struct {
	TypeDefinition [16]byte
	NextOffset     uint64
	Size           uint64
	Padding        [40]byte
	CheckSum       uint32
}

func (s sectionHeader) typeName() string {
	return string(bytes.TrimRight(s.TypeDefinition[:], "\x00"))
}

// diskInfo mirrors the fixed fields of the EWF disk/volume section that
// ReadAt needs to map byte offsets onto chunks.
type diskInfo struct {
	SectorBytes  uint32
	SectorsCount uint64
	ChunkSectors uint32
	ChunkCount   uint32
}

// tableEntry records one chunk's location within a specific segment file.
// Chunk size isn't stored in the table itself: uncompressed chunks are a
// fixed ChunkSectors*SectorBytes, and compressed chunks are sized by their
// zlib stream's natural end, so readChunk derives size instead of storing it.
type tableEntry struct {
	segment     int
	chunkOffset uint64
	compressed  bool
}

// segment is one .eNN file belonging to an EWF segment set.
type segment struct {
	path   string
	file   *os.File
	number uint16
}

// EwfReader provides random access over a (possibly multi-segment) EWF
// evidence container. Chunk offsets recorded in the Table/Table2 sections
// are segment-relative, so each tableEntry remembers which segment it
// belongs to.
type EwfReader struct {
	mu       sync.Mutex
	segments []*segment
	disk     *diskInfo
	chunks   map[uint64]tableEntry // chunk index -> location
	caseInfo *CaseInfo

	cacheMu  sync.RWMutex
	cache    map[uint64][]byte
	cacheLRU []uint64
}

// CaseInfo carries the subset of EnCase header fields forensic examiners
// expect to see alongside any extracted artifact.
type CaseInfo struct {
	CaseNumber      string `json:"case_number,omitempty"`
	EvidenceNumber  string `json:"evidence_number,omitempty"`
	ExaminerName    string `json:"examiner_name,omitempty"`
	Notes           string `json:"notes,omitempty"`
	AcquisitionDate string `json:"acquisition_date,omitempty"`
	SystemDate      string `json:"system_date,omitempty"`
}

// OpenEwf discovers every segment of an EWF set (".e01", ".e02", ... or the
// ".ewf"/".Exx" equivalents), parses each segment's sections, and returns a
// reader addressable by absolute byte offset across the whole disk image.
func OpenEwf(path string) (*EwfReader, error) {
	paths, err := discoverSegments(path)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no EWF segments found for %s", ErrEwfUnavailable, path)
	}

	r := &EwfReader{
		chunks: make(map[uint64]tableEntry),
		cache:  make(map[uint64][]byte),
	}

	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%w: open segment %s: %v", ErrIO, p, err)
		}
		seg := &segment{path: p, file: f, number: uint16(i + 1)}
		r.segments = append(r.segments, seg)
		if err := r.parseSegment(seg); err != nil {
			r.Close()
			return nil, fmt.Errorf("%w: segment %s: %v", ErrEwfUnavailable, p, err)
		}
	}

	if r.disk == nil {
		r.Close()
		return nil, fmt.Errorf("%w: no disk/volume section found in %s", ErrEwfUnavailable, path)
	}
	if len(r.chunks) == 0 {
		r.Close()
		return nil, fmt.Errorf("%w: no table entries found in %s", ErrEwfUnavailable, path)
	}
	return r, nil
}

// discoverSegments globs sibling "<base>.eNN" files next to the given path,
// case-insensitively, and returns them sorted by segment number.
func discoverSegments(path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, dir, err)
	}

	var matches []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		lowerName := strings.ToLower(name)
		lowerBase := strings.ToLower(base)
		if !strings.HasPrefix(lowerName, lowerBase+".e") {
			continue
		}
		ext := lowerName[len(lowerBase)+2:]
		if len(ext) != 2 {
			continue
		}
		matches = append(matches, filepath.Join(dir, name))
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		// single-segment image, e.g. given path has no siblings
		matches = []string{path}
	}
	return matches, nil
}

func (r *EwfReader) parseSegment(seg *segment) error {
	var header evfFileHeader
	if err := binary.Read(seg.file, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("reading EWF file header: %w", err)
	}
	if header.Signature != evfSignature {
		return fmt.Errorf("invalid EWF signature in %s", seg.path)
	}

	info, err := seg.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", seg.path, err)
	}
	fileSize := info.Size()

	offset := int64(binary.Size(header))
	seen := map[uint64]bool{}
	done := false
	for !done {
		sec, err := readSectionHeader(seg.file, offset, fileSize)
		if err != nil {
			return err
		}

		switch sec.typeName() {
		case "header", "header2":
			ci, err := parseEwfHeader(seg.file, offset, sec)
			if err != nil {
				ewfLog.Warningf(nil, "parsing header section in %s: %v", seg.path, err)
			} else if r.caseInfo == nil {
				r.caseInfo = ci
			}
		case "disk", "volume":
			di, err := parseDiskInfo(seg.file, offset, sec)
			if err != nil {
				ewfLog.Warningf(nil, "parsing disk section in %s: %v", seg.path, err)
			} else {
				r.disk = di
			}
		case "table":
			if err := r.parseTable(seg, offset, sec, false); err != nil {
				ewfLog.Warningf(nil, "parsing table section in %s: %v", seg.path, err)
			}
		case "table2":
			if err := r.parseTable(seg, offset, sec, true); err != nil {
				ewfLog.Warningf(nil, "parsing table2 section in %s: %v", seg.path, err)
			}
		case "done":
			done = true
		}

		if sec.NextOffset == 0 || seen[sec.NextOffset] || sec.NextOffset <= uint64(offset) {
			break
		}
		seen[sec.NextOffset] = true
		offset = int64(sec.NextOffset)
	}
	return nil
}

func readSectionHeader(f *os.File, offset, fileSize int64) (sectionHeader, error) {
	var sec sectionHeader
	if offset < 0 || offset >= fileSize {
		return sec, fmt.Errorf("invalid section offset %d (file size %d)", offset, fileSize)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return sec, fmt.Errorf("seeking to section at %d: %w", offset, err)
	}
	if err := binary.Read(f, binary.LittleEndian, &sec); err != nil {
		return sec, fmt.Errorf("reading section header at %d: %w", offset, err)
	}
	return sec, nil
}

// parseEwfHeader decompresses the header/header2 payload and decodes it,
// detecting a UTF-16 byte-order mark the way EnCase headers carry one.
func parseEwfHeader(f *os.File, sectionOffset int64, sec sectionHeader) (*CaseInfo, error) {
	const sectionHeaderLen = 76
	payloadSize := int64(sec.Size) - sectionHeaderLen
	if payloadSize <= 0 {
		return nil, fmt.Errorf("header section too small")
	}
	if _, err := f.Seek(sectionOffset+sectionHeaderLen, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to header payload: %w", err)
	}
	compressed := make([]byte, payloadSize)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, fmt.Errorf("reading header payload: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer zr.Close()
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, zr); err != nil {
		return nil, fmt.Errorf("decompressing header: %w", err)
	}

	text := decodeHeaderText(raw.Bytes())
	lines := strings.Split(text, "\n")
	if len(lines) < 4 {
		return nil, fmt.Errorf("header has too few lines")
	}
	flags := strings.Split(lines[2], "\t")
	values := strings.Split(lines[3], "\t")
	if len(flags) != len(values) {
		return nil, fmt.Errorf("header flag/value count mismatch")
	}

	ci := &CaseInfo{}
	for i, flag := range flags {
		v := strings.TrimSpace(values[i])
		switch flag {
		case "c":
			ci.CaseNumber = v
		case "n":
			ci.EvidenceNumber = v
		case "e":
			ci.ExaminerName = v
		case "t":
			ci.Notes = v
		case "m":
			ci.AcquisitionDate = v
		case "u":
			ci.SystemDate = v
		}
	}
	return ci, nil
}

func parseDiskInfo(f *os.File, sectionOffset int64, sec sectionHeader) (*diskInfo, error) {
	const sectionHeaderLen = 76
	if _, err := f.Seek(sectionOffset+sectionHeaderLen, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to disk section: %w", err)
	}
	var fixed struct {
		MediaType    uint8
		_            [3]byte
		ChunkCount   uint32
		ChunkSectors uint32
		SectorBytes  uint32
		SectorsCount uint64
	}
	if err := binary.Read(f, binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("reading disk section: %w", err)
	}
	if fixed.SectorBytes == 0 || fixed.ChunkSectors == 0 {
		return nil, fmt.Errorf("disk section reports zero sector/chunk geometry")
	}
	return &diskInfo{
		SectorBytes:  fixed.SectorBytes,
		SectorsCount: fixed.SectorsCount,
		ChunkSectors: fixed.ChunkSectors,
		ChunkCount:   fixed.ChunkCount,
	}, nil
}

// parseTable reads a table/table2 section's chunk descriptors as stored:
// an uncompressed array of 32-bit entry words, with no zlib decoding.
func (r *EwfReader) parseTable(seg *segment, sectionOffset int64, sec sectionHeader, isTable2 bool) error {
	const sectionHeaderLen = 76

	if _, err := seg.file.Seek(sectionOffset+sectionHeaderLen, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to table section: %w", err)
	}
	var entryCount uint32
	if err := binary.Read(seg.file, binary.LittleEndian, &entryCount); err != nil {
		return fmt.Errorf("reading table entry count: %w", err)
	}
	if _, err := seg.file.Seek(16+4, io.SeekCurrent); err != nil { // padding + checksum
		return fmt.Errorf("seeking past table header padding: %w", err)
	}

	baseChunkIndex := uint64(len(r.chunks))
	if isTable2 {
		baseChunkIndex = 0 // table2 is a redundant copy of the same index range as table
	}

	raw := make([]byte, entryCount*4)
	if _, err := io.ReadFull(seg.file, raw); err != nil {
		return fmt.Errorf("reading %d table entries: %w", entryCount, err)
	}

	for i := uint32(0); i < entryCount; i++ {
		word := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		compressed := word&0x80000000 != 0
		offset := uint64(word & 0x7fffffff)
		if offset == 0 {
			continue
		}
		idx := baseChunkIndex + uint64(i)
		entry := tableEntry{segment: len(r.segments) - 1, chunkOffset: offset, compressed: compressed}
		if isTable2 {
			if _, ok := r.chunks[idx]; ok {
				continue // table already supplied this chunk; table2 only backfills gaps
			}
		}
		r.chunks[idx] = entry
	}

	return nil
}

func decodeHeaderText(b []byte) string {
	if len(b) >= 2 {
		if b[0] == 0xff && b[1] == 0xfe {
			return decodeUTF16(b, false)
		}
		if b[0] == 0xfe && b[1] == 0xff {
			return decodeUTF16(b, true)
		}
	}
	return string(b)
}

func (r *EwfReader) readChunk(index uint64) ([]byte, error) {
	r.cacheMu.Lock()
	if data, ok := r.cache[index]; ok {
		// Move the hit to the most-recently-used end of the eviction order.
		for i, v := range r.cacheLRU {
			if v == index {
				r.cacheLRU = append(r.cacheLRU[:i], r.cacheLRU[i+1:]...)
				break
			}
		}
		r.cacheLRU = append(r.cacheLRU, index)
		r.cacheMu.Unlock()
		return data, nil
	}
	r.cacheMu.Unlock()

	entry, ok := r.chunks[index]
	if !ok {
		return nil, fmt.Errorf("%w: no table entry for chunk %d", ErrIO, index)
	}
	if entry.segment < 0 || entry.segment >= len(r.segments) {
		return nil, fmt.Errorf("%w: chunk %d references unknown segment", ErrIO, index)
	}
	seg := r.segments[entry.segment]

	r.mu.Lock()
	chunkSize := int64(r.disk.ChunkSectors) * int64(r.disk.SectorBytes)
	// Compressed chunks don't know their compressed size up front; read a
	// generous window and let zlib stop at the stream's natural end.
	readSize := chunkSize
	if entry.compressed {
		readSize = chunkSize + chunkSize/2 + 128
	}
	buf := make([]byte, readSize)
	n, err := seg.file.ReadAt(buf, int64(entry.chunkOffset))
	r.mu.Unlock()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: reading chunk %d: %v", ErrIO, index, err)
	}
	buf = buf[:n]

	var data []byte
	if entry.compressed {
		zr, zerr := zlib.NewReader(bytes.NewReader(buf))
		if zerr != nil {
			return nil, fmt.Errorf("%w: opening compressed chunk %d: %v", ErrIO, index, zerr)
		}
		var out bytes.Buffer
		if _, err := io.Copy(&out, zr); err != nil {
			zr.Close()
			return nil, fmt.Errorf("%w: decompressing chunk %d: %v", ErrIO, index, err)
		}
		zr.Close()
		data = out.Bytes()
	} else {
		if int64(len(buf)) > chunkSize {
			buf = buf[:chunkSize]
		}
		data = buf
	}

	r.addToCache(index, data)
	return data, nil
}

func (r *EwfReader) addToCache(index uint64, data []byte) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if _, ok := r.cache[index]; ok {
		return
	}
	if len(r.cacheLRU) >= maxChunkCacheEntries {
		oldest := r.cacheLRU[0]
		r.cacheLRU = r.cacheLRU[1:]
		delete(r.cache, oldest)
	}
	r.cache[index] = data
	r.cacheLRU = append(r.cacheLRU, index)
}

// ReadAt maps an absolute byte range onto whole chunks, decompressing as
// needed, and slices out exactly the requested bytes.
func (r *EwfReader) ReadAt(offset int64, size int) ([]byte, error) {
	if r.disk == nil {
		return nil, ErrNotOpen
	}
	chunkBytes := int64(r.disk.ChunkSectors) * int64(r.disk.SectorBytes)
	if chunkBytes <= 0 {
		return nil, fmt.Errorf("%w: invalid chunk geometry", ErrIO)
	}

	out := make([]byte, 0, size)
	remaining := int64(size)
	pos := offset
	for remaining > 0 {
		chunkIndex := uint64(pos / chunkBytes)
		chunkOffset := pos % chunkBytes
		data, err := r.readChunk(chunkIndex)
		if err != nil {
			return nil, err
		}
		avail := int64(len(data)) - chunkOffset
		if avail <= 0 {
			return nil, fmt.Errorf("%w: chunk %d exhausted before offset %d", ErrIO, chunkIndex, pos)
		}
		take := remaining
		if take > avail {
			take = avail
		}
		out = append(out, data[chunkOffset:chunkOffset+take]...)
		pos += take
		remaining -= take
	}
	return out, nil
}

// Size returns the total logical disk size in bytes.
func (r *EwfReader) Size() int64 {
	if r.disk == nil {
		return 0
	}
	return int64(r.disk.SectorsCount) * int64(r.disk.SectorBytes)
}

// CaseInfo returns the decoded EnCase case/evidence header, if one was present.
func (r *EwfReader) CaseInfo() *CaseInfo {
	return r.caseInfo
}

func (r *EwfReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, seg := range r.segments {
		if seg.file == nil {
			continue
		}
		if err := seg.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: closing %s: %v", ErrIO, seg.path, err)
		}
		seg.file = nil
	}
	if firstErr != nil {
		return firstErr
	}
	return nil
}
