package dwarf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dwex-project/dwex/test"
)

func TestRowForExactAndBetween(t *testing.T) {
	lt := &LineTable{
		Rows: []LineRow{
			{Address: 0x1000, Line: 10},
			{Address: 0x1010, Line: 11},
			{Address: 0x1020, Line: 12},
			{Address: 0x1030, EndSequence: true},
		},
	}

	row, ok := lt.RowFor(0x1000)
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, row.Line, 10)

	row, ok = lt.RowFor(0x1018)
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, row.Line, 11)

	row, ok = lt.RowFor(0x102f)
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, row.Line, 12)
}

func TestRowForBeforeFirstRow(t *testing.T) {
	lt := &LineTable{
		Rows: []LineRow{
			{Address: 0x1000, Line: 10},
			{Address: 0x1030, EndSequence: true},
		},
	}

	_, ok := lt.RowFor(0x500)
	test.ExpectEquality(t, ok, false)
}

func TestRowForPastEndSequence(t *testing.T) {
	lt := &LineTable{
		Rows: []LineRow{
			{Address: 0x1000, Line: 10},
			{Address: 0x1030, EndSequence: true},
		},
	}

	// An address exactly on (or past) the terminating end-sequence row has
	// no covering statement; the sequence's range is [0x1000, 0x1030).
	_, ok := lt.RowFor(0x1030)
	test.ExpectEquality(t, ok, false)
}

func TestFileEntryFields(t *testing.T) {
	want := FileEntry{Name: "main.c", DirIndex: 1, Mtime: 0, Length: 0}
	got := FileEntry{Name: "main.c", DirIndex: 1}

	diff := cmp.Diff(want, got, cmpopts.IgnoreFields(FileEntry{}, "Mtime", "Length"))
	if diff != "" {
		t.Errorf("FileEntry mismatch (-want +got):\n%s", diff)
	}
}
