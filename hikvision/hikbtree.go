package hikvision

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hikforensics/hikview/image"
)

var hikbtreeSignature = []byte("HIKBTREE")

const (
	hikbtreeHeaderSize   = 256
	pageListReadSize     = 8192
	pageReadSize         = 4096
	footerReadSize       = 32
	pageListEntryOffset  = 80 // critical invariant: 76 was a known-wrong earlier revision
	pageListEntryStride  = 48
	pageEntryStride      = 48
)

// HikbtreeHeader is the fixed header at the start of the HIKBTREE index.
type HikbtreeHeader struct {
	CreatedTime     uint32 `json:"created_time"`
	FooterAddress   uint64 `json:"footer_address"`
	PageListAddress uint64 `json:"page_list_address"`
	Page1Address    uint64 `json:"page_1_address"`
}

// PageMetadata summarises one page's first entry for the page-list vector.
type PageMetadata struct {
	PageNumber            int    `json:"page_number"`
	PageOffset            uint64 `json:"page_offset"`
	Channel               uint8  `json:"channel"`
	FirstEntryStartTime   uint32 `json:"first_entry_start_time"`
	FirstEntryEndTime     uint32 `json:"first_entry_end_time"`
	FirstEntryDataOffset  uint64 `json:"first_entry_data_offset"`
}

// PageListSummary is the decoded page-list block.
type PageListSummary struct {
	TotalPages   uint32         `json:"total_pages"`
	PageMetadata []PageMetadata `json:"page_metadata"`
}

// PageEntry is one data-block entry within a HIKBTREE page.
type PageEntry struct {
	EntryNumberInPage int    `json:"entry_number_in_page"`
	Address           string `json:"address"`
	Existence         string `json:"existence"`
	Channel           uint8  `json:"channel"`
	StartTime         uint32 `json:"start_time"`
	EndTime           uint32 `json:"end_time"`
	DataBlockOffset   string `json:"data_block_offset"`
}

// Page is one fully parsed HIKBTREE page.
type Page struct {
	NextPageAddress string      `json:"next_page_address"`
	IsLastPage      bool        `json:"is_last_page"`
	Entries         []PageEntry `json:"entries"`
}

// HikbtreeFooter is the trailing fixed record.
type HikbtreeFooter struct {
	LastPageAddress uint64 `json:"last_page_address"`
}

// HikbtreeDocument is the complete JSON document the "hikbtree" operation emits.
type HikbtreeDocument struct {
	ImageInfo       ImageInfo          `json:"image_info"`
	Header          HikbtreeHeader     `json:"header"`
	PageListSummary PageListSummary    `json:"page_list_summary"`
	Pages           map[string]*Page   `json:"pages"`
	Footer          HikbtreeFooter     `json:"footer"`
}

// ParseHikbtreeHeader reads and validates the HIKBTREE header at the given
// absolute address.
func ParseHikbtreeHeader(r image.Reader, address int64) (*HikbtreeHeader, error) {
	buf, err := r.ReadAt(address, hikbtreeHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading HIKBTREE header at 0x%X: %v", ErrTruncatedField, address, err)
	}
	if !bytes.Equal(buf[:len(hikbtreeSignature)], hikbtreeSignature) {
		return nil, fmt.Errorf("%w: expected %q at 0x%X", ErrInvalidSignature, hikbtreeSignature, address)
	}
	sigLen := len(hikbtreeSignature)
	return &HikbtreeHeader{
		CreatedTime:     binary.LittleEndian.Uint32(buf[sigLen+36 : sigLen+40]),
		FooterAddress:   binary.LittleEndian.Uint64(buf[sigLen+40 : sigLen+48]),
		PageListAddress: binary.LittleEndian.Uint64(buf[sigLen+56 : sigLen+64]),
		Page1Address:    binary.LittleEndian.Uint64(buf[sigLen+64 : sigLen+72]),
	}, nil
}

// ParsePageListSummary reads the page-list block and its per-page summary
// entries. A truncated entry stops the walk early and logs a warning
// instead of aborting the whole parse.
func ParsePageListSummary(r image.Reader, address int64) (*PageListSummary, error) {
	buf, err := r.ReadAt(address, pageListReadSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading page list at 0x%X: %v", ErrTruncatedField, address, err)
	}
	totalPages := binary.LittleEndian.Uint32(buf[0:4])

	summary := &PageListSummary{TotalPages: totalPages}
	for i := uint32(0); i < totalPages; i++ {
		start := pageListEntryOffset + int(i)*pageListEntryStride
		if start+pageListEntryStride > len(buf) {
			pkgLog.Warningf(nil, "page list truncated at entry %d of %d", i, totalPages)
			break
		}
		entry := buf[start : start+pageListEntryStride]
		summary.PageMetadata = append(summary.PageMetadata, PageMetadata{
			PageNumber:           int(i) + 1,
			PageOffset:           binary.LittleEndian.Uint64(entry[0:8]),
			Channel:              entry[17],
			FirstEntryStartTime:  binary.LittleEndian.Uint32(entry[24:28]),
			FirstEntryEndTime:    binary.LittleEndian.Uint32(entry[28:32]),
			FirstEntryDataOffset: binary.LittleEndian.Uint64(entry[32:40]),
		})
	}
	return summary, nil
}

// ParsePage reads and decodes one HIKBTREE page at the given absolute address.
func ParsePage(r image.Reader, address int64) (*Page, error) {
	buf, err := r.ReadAt(address, pageReadSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading page at 0x%X: %v", ErrTruncatedField, address, err)
	}
	nextPageOffset := binary.LittleEndian.Uint64(buf[16:24])
	page := &Page{
		NextPageAddress: fmt.Sprintf("0x%X", nextPageOffset),
		IsLastPage:      nextPageOffset == 0xFFFFFFFFFFFFFFFF,
	}

	liveMarker := bytes.Repeat([]byte{0xFF}, 8)
	for i := 0; ; i++ {
		start := pageListEntryOffset + i*pageEntryStride
		if start+pageEntryStride > len(buf) {
			pkgLog.Warningf(nil, "page at 0x%X truncated at entry %d", address, i+1)
			break
		}
		entry := buf[start : start+pageEntryStride]
		if !bytes.Equal(entry[0:8], liveMarker) {
			break
		}
		existence := "No Video/Recording"
		if isAllZero(entry[8:16]) {
			existence = "Has Video Data"
		}
		dataBlockOffset := binary.LittleEndian.Uint64(entry[32:40])
		page.Entries = append(page.Entries, PageEntry{
			EntryNumberInPage: i + 1,
			Address:           fmt.Sprintf("0x%X", address+int64(start)),
			Existence:         existence,
			Channel:           entry[17],
			StartTime:         binary.LittleEndian.Uint32(entry[24:28]),
			EndTime:           binary.LittleEndian.Uint32(entry[28:32]),
			DataBlockOffset:   fmt.Sprintf("0x%X", dataBlockOffset),
		})
	}
	return page, nil
}

// ParseFooter reads the trailing HIKBTREE footer record.
func ParseFooter(r image.Reader, address int64) (*HikbtreeFooter, error) {
	buf, err := r.ReadAt(address, footerReadSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading footer at 0x%X: %v", ErrTruncatedField, address, err)
	}
	if !bytes.Equal(buf[0:8], bytes.Repeat([]byte{0xFF}, 8)) {
		pkgLog.Warningf(nil, "footer at 0x%X missing expected 0xFF padding", address)
	}
	return &HikbtreeFooter{LastPageAddress: binary.LittleEndian.Uint64(buf[8:16])}, nil
}

// ParseHikbtree walks the full index (header, page-list summary, every
// page named in the page list, and the footer) starting from the given
// master-derived offset and alignment. Each page's next_page_address is
// recorded but not followed.
func ParseHikbtree(r image.Reader, hikbtree1Offset uint64, extraOffset int64) (*HikbtreeDocument, error) {
	headerAddr := int64(hikbtree1Offset) + extraOffset
	header, err := ParseHikbtreeHeader(r, headerAddr)
	if err != nil {
		return nil, err
	}

	summary, err := ParsePageListSummary(r, int64(header.PageListAddress)+extraOffset)
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*Page)
	for _, meta := range summary.PageMetadata {
		addr := int64(meta.PageOffset) + extraOffset
		page, err := ParsePage(r, addr)
		if err != nil {
			pkgLog.Warningf(nil, "parsing page %d at 0x%X: %v", meta.PageNumber, addr, err)
			continue
		}
		pages[fmt.Sprintf("page_%d", meta.PageNumber)] = page
	}

	footer, err := ParseFooter(r, int64(header.FooterAddress)+extraOffset)
	if err != nil {
		return nil, err
	}

	return &HikbtreeDocument{
		Header:          *header,
		PageListSummary: *summary,
		Pages:           pages,
		Footer:          *footer,
	}, nil
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
