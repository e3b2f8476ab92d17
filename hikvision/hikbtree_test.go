package hikvision

import "testing"

func TestParsePageListSummary_OffsetEighty(t *testing.T) {
	// Regression guard for the offset-80 invariant: an implementation that
	// started entries at 76 would decode page_offset from the wrong bytes.
	buf := make([]byte, pageListReadSize)
	putU32(buf, 0, 2) // total_pages

	putU64(buf, 80, 0xAAAA0000)
	buf[80+17] = 3
	putU32(buf, 80+24, 100)
	putU32(buf, 80+28, 200)
	putU64(buf, 80+32, 0x1000)

	putU64(buf, 128, 0xBBBB0000)
	buf[128+17] = 4
	putU32(buf, 128+24, 300)
	putU32(buf, 128+28, 400)
	putU64(buf, 128+32, 0x2000)

	r := &memReader{data: buf}
	summary, err := ParsePageListSummary(r, 0)
	if err != nil {
		t.Fatalf("ParsePageListSummary: %v", err)
	}
	if len(summary.PageMetadata) != 2 {
		t.Fatalf("got %d page metadata entries, want 2", len(summary.PageMetadata))
	}
	if summary.PageMetadata[0].PageOffset != 0xAAAA0000 {
		t.Errorf("entry 0 page_offset = 0x%X, want 0xAAAA0000", summary.PageMetadata[0].PageOffset)
	}
	if summary.PageMetadata[1].PageOffset != 0xBBBB0000 {
		t.Errorf("entry 1 page_offset = 0x%X, want 0xBBBB0000", summary.PageMetadata[1].PageOffset)
	}

	// Demonstrate that offset 76 (the known-wrong earlier revision) would
	// have decoded something different from the correct offset-80 value.
	var wrongValue uint64
	for i := 0; i < 8; i++ {
		wrongValue |= uint64(buf[76+i]) << (8 * i)
	}
	if wrongValue == summary.PageMetadata[0].PageOffset {
		t.Fatal("offset-76 and offset-80 decodes coincide; test fixture does not discriminate between them")
	}
}

func TestParsePageListSummary_TruncatedEntryWarnsAndStops(t *testing.T) {
	// total_pages claims more entries than fit in the fixed 8192-byte
	// page-list window; the walk must stop at the last entry that fits
	// rather than reading past the buffer.
	buf := make([]byte, pageListReadSize)
	putU32(buf, 0, 200)
	putU64(buf, 80, 0x1234)

	r := &memReader{data: buf}
	summary, err := ParsePageListSummary(r, 0)
	if err != nil {
		t.Fatalf("ParsePageListSummary: %v", err)
	}
	wantEntries := (pageListReadSize - pageListEntryOffset) / pageListEntryStride
	if len(summary.PageMetadata) != wantEntries {
		t.Fatalf("got %d entries, want %d", len(summary.PageMetadata), wantEntries)
	}
	if summary.PageMetadata[0].PageOffset != 0x1234 {
		t.Errorf("entry 0 page_offset = 0x%X, want 0x1234", summary.PageMetadata[0].PageOffset)
	}
}

func TestParsePage_StopsAtNonLiveMarker(t *testing.T) {
	buf := make([]byte, pageReadSize)
	putU64(buf, 16, 0xFFFFFFFFFFFFFFFF) // is_last_page

	// one live entry at offset 80
	for i := 0; i < 8; i++ {
		buf[80+i] = 0xFF
	}
	buf[80+17] = 1
	putU32(buf, 80+24, 111)
	putU32(buf, 80+28, 222)
	putU64(buf, 80+32, 0x9000)
	// existence all-zero at +8 means "Has Video Data"

	// next entry at 128 deliberately does not start with 0xFF*8, so the
	// walk must stop there.

	r := &memReader{data: buf}
	page, err := ParsePage(r, 0)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if !page.IsLastPage {
		t.Error("expected IsLastPage to be true")
	}
	if len(page.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(page.Entries))
	}
	e := page.Entries[0]
	if e.Existence != "Has Video Data" {
		t.Errorf("existence = %q, want %q", e.Existence, "Has Video Data")
	}
	if e.Channel != 1 || e.StartTime != 111 || e.EndTime != 222 {
		t.Errorf("unexpected entry fields: %+v", e)
	}
}
