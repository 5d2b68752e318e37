package archive

import (
	"bytes"
	"testing"

	"github.com/dwex-project/dwex/test"
)

func TestWriteReadRoundTrip(t *testing.T) {
	members := []Member{
		{Name: "a.o", ModTime: 1000, UID: 0, GID: 0, Mode: 0644, Data: []byte("hello")},
		{Name: "b.o", ModTime: 2000, UID: 0, GID: 0, Mode: 0644, Data: []byte("world!")},
	}

	var buf bytes.Buffer
	err := Write(&buf, members, nil)
	test.ExpectSuccess(t, err)

	test.ExpectEquality(t, bytes.HasPrefix(buf.Bytes(), []byte(Magic)), true)

	a, err := Read(&buf)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, len(a.Members), 2)
	test.ExpectEquality(t, a.Members[0].Name, "a.o")
	test.ExpectEquality(t, string(a.Members[0].Data), "hello")
	test.ExpectEquality(t, a.Members[1].Name, "b.o")
	test.ExpectEquality(t, string(a.Members[1].Data), "world!")
}

func TestWriteReadLongNames(t *testing.T) {
	members := []Member{
		{Name: "a-very-long-member-name-that-exceeds-sixteen-bytes.o", Data: []byte("x")},
		{Name: "short.o", Data: []byte("y")},
	}

	var buf bytes.Buffer
	err := Write(&buf, members, nil)
	test.ExpectSuccess(t, err)

	a, err := Read(&buf)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, len(a.Members), 2)
	test.ExpectEquality(t, a.Members[0].Name, "a-very-long-member-name-that-exceeds-sixteen-bytes.o")
	test.ExpectEquality(t, a.Members[1].Name, "short.o")
}

func TestWriteReadSymbolIndex(t *testing.T) {
	members := []Member{
		{Name: "a.o", Data: []byte("hello")},
		{Name: "b.o", Data: []byte("world!")},
	}

	symbolsFor := func(m Member) []string {
		switch m.Name {
		case "a.o":
			return []string{"foo", "bar"}
		case "b.o":
			return []string{"baz"}
		}
		return nil
	}

	var buf bytes.Buffer
	err := Write(&buf, members, symbolsFor)
	test.ExpectSuccess(t, err)

	a, err := Read(&buf)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, len(a.Members), 2)

	test.ExpectEquality(t, len(a.Symbols), 3)
	_, ok := a.Symbols["foo"]
	test.ExpectEquality(t, ok, true)
	_, ok = a.Symbols["bar"]
	test.ExpectEquality(t, ok, true)
	_, ok = a.Symbols["baz"]
	test.ExpectEquality(t, ok, true)

	// foo and bar are defined by the first member, baz by the second;
	// the offsets should differ since the members are at different
	// positions in the archive.
	test.ExpectEquality(t, a.Symbols["foo"], a.Symbols["bar"])
	test.ExpectInequality(t, a.Symbols["foo"], a.Symbols["baz"])
}

func TestWriteSymbolIndexOffsetsPointAtRealHeaders(t *testing.T) {
	members := []Member{
		{Name: "a.o", Data: []byte("hello")},
		{Name: "b.o", Data: []byte("world!")},
	}
	symbolsFor := func(m Member) []string {
		if m.Name == "b.o" {
			return []string{"baz"}
		}
		return nil
	}

	var buf bytes.Buffer
	err := Write(&buf, members, symbolsFor)
	test.ExpectSuccess(t, err)
	raw := buf.Bytes()

	a, err := Read(bytes.NewReader(raw))
	test.ExpectSuccess(t, err)

	// Symbols["baz"] is documented as the header offset of its defining
	// member, counted from just past the magic. Confirm it actually lands
	// on "b.o"'s header rather than a stale pre-bias offset.
	off, ok := a.Symbols["baz"]
	test.ExpectEquality(t, ok, true)

	headerStart := len(Magic) + int(off)
	name := string(bytes.TrimRight(raw[headerStart:headerStart+16], " "))
	test.ExpectEquality(t, name, "b.o/")
}

func TestReadBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not an archive at all")))
	test.ExpectFailure(t, err)
}

func TestReadOddLengthPadding(t *testing.T) {
	members := []Member{
		{Name: "odd.o", Data: []byte("x")},
		{Name: "next.o", Data: []byte("y")},
	}

	var buf bytes.Buffer
	err := Write(&buf, members, nil)
	test.ExpectSuccess(t, err)

	a, err := Read(&buf)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, len(a.Members), 2)
	test.ExpectEquality(t, string(a.Members[0].Data), "x")
	test.ExpectEquality(t, string(a.Members[1].Data), "y")
}
