// Package archive implements the SysV/GNU "ar" container format that
// cmd/archiver operates on (spec.md §1: explicitly out of the DWARF core's
// scope, but in this system's scope as the format its tools consume;
// SPEC_FULL.md §4.15). Grounded on original_source/src/ar.c and ranlib.c:
// the "!<arch>\n" magic, fixed 60-byte member headers, a "//" long-name
// table for names exceeding the header's 16-byte field, and a "/" symbol
// index member built the way ranlib.c builds one.
package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dwex-project/dwex/errors"
)

// Magic is the fixed 8-byte signature every ar archive begins with.
const Magic = "!<arch>\n"

const headerSize = 60

// Member is one file stored in the archive.
type Member struct {
	Name    string
	ModTime int64
	UID     int
	GID     int
	Mode    uint32
	Data    []byte
}

// Archive is a fully-read ar container: its members in file order, plus
// the symbol index if one was present (conventionally the first member,
// named "/").
type Archive struct {
	Members []Member
	// Symbols maps an exported symbol name to the byte offset (from just
	// past the archive magic) of the ar_hdr of the member defining it,
	// decoded from the "/" symbol-index member if present.
	Symbols map[string]int64
}

// Read parses an ar archive from r.
func Read(r io.Reader) (*Archive, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if string(magic) != Magic {
		return nil, errors.Errorf(errors.ArchiveBadMagic)
	}

	var longNames string
	a := &Archive{}

	for {
		hdr := make([]byte, headerSize)
		_, err := io.ReadFull(br, hdr)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: reading member header: %w", err)
		}
		if string(hdr[58:60]) != "`\n" {
			return nil, errors.Errorf(errors.ArchiveBadHeader)
		}

		rawName := strings.TrimRight(string(hdr[0:16]), " ")
		mtime, _ := strconv.ParseInt(strings.TrimSpace(string(hdr[16:28])), 10, 64)
		uid, _ := strconv.Atoi(strings.TrimSpace(string(hdr[28:34])))
		gid, _ := strconv.Atoi(strings.TrimSpace(string(hdr[34:40])))
		mode, _ := strconv.ParseUint(strings.TrimSpace(string(hdr[40:48])), 8, 32)
		size, err := strconv.ParseInt(strings.TrimSpace(string(hdr[48:58])), 10, 64)
		if err != nil {
			return nil, errors.Errorf(errors.ArchiveBadSize, err)
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, fmt.Errorf("archive: reading member data: %w", err)
		}
		if size%2 != 0 {
			// members are padded to an even byte boundary with '\n'
			if _, err := br.Discard(1); err != nil && err != io.EOF {
				return nil, fmt.Errorf("archive: %w", err)
			}
		}

		switch {
		case rawName == "//":
			longNames = string(data)
			continue
		case rawName == "/":
			a.Symbols = decodeSymbolIndex(data)
			continue
		case strings.HasPrefix(rawName, "/"):
			off, err := strconv.Atoi(rawName[1:])
			if err != nil {
				return nil, errors.Errorf(errors.ArchiveBadLongName, rawName)
			}
			if off < 0 || off > len(longNames) {
				return nil, errors.Errorf(errors.ArchiveLongNameRange, off)
			}
			end := strings.IndexAny(longNames[off:], "/\n")
			if end < 0 {
				end = len(longNames) - off
			}
			rawName = longNames[off : off+end]
		default:
			rawName = strings.TrimSuffix(rawName, "/")
		}

		a.Members = append(a.Members, Member{
			Name:    rawName,
			ModTime: mtime,
			UID:     uid,
			GID:     gid,
			Mode:    uint32(mode),
			Data:    data,
		})
	}

	return a, nil
}

// decodeSymbolIndex parses a SysV "/" symbol-table member: a big-endian
// u32 count, that many big-endian u32 member offsets, then that many
// NUL-terminated symbol names in the same order.
func decodeSymbolIndex(data []byte) map[string]int64 {
	if len(data) < 4 {
		return nil
	}
	count := binary.BigEndian.Uint32(data[0:4])
	offsTable := data[4:]
	if uint64(len(offsTable)) < uint64(count)*4 {
		return nil
	}

	offsets := make([]int64, count)
	for i := uint32(0); i < count; i++ {
		offsets[i] = int64(binary.BigEndian.Uint32(offsTable[i*4 : i*4+4]))
	}

	names := offsTable[count*4:]
	out := make(map[string]int64, count)
	parts := bytes.SplitN(names, []byte{0}, int(count)+1)
	for i := 0; i < int(count) && i < len(parts); i++ {
		out[string(parts[i])] = offsets[i]
	}
	return out
}

// Write serializes members into w, with a "//" long-name table for any
// name that doesn't fit the 16-byte header field, and (if symbolsFor is
// non-nil) a leading "/" symbol-index member built the way ranlib.c
// builds one: one (name, defining member offset) pair per name
// symbolsFor returns for that member, sorted by name.
func Write(w io.Writer, members []Member, symbolsFor func(Member) []string) error {
	if _, err := io.WriteString(w, Magic); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	var longNames strings.Builder
	longOffsets := make(map[string]int, len(members))
	for _, m := range members {
		if len(m.Name) > 15 {
			longOffsets[m.Name] = longNames.Len()
			longNames.WriteString(m.Name)
			longNames.WriteByte('/')
			longNames.WriteByte('\n')
		}
	}

	var bodies bytes.Buffer
	symbols := make(map[string]int64)

	if longNames.Len() > 0 {
		if err := writeMember(&bodies, "//", 0, 0, 0, 0, []byte(longNames.String())); err != nil {
			return err
		}
	}

	// Offsets are collected here relative to bodies.Len(), i.e. as if bodies
	// began right after the magic. That's only true when there's no symbol
	// index; when symbolsFor is non-nil the "/" member is written ahead of
	// bodies, so every offset gets rebiased by that member's size below
	// before it's actually encoded.
	for _, m := range members {
		hdrName := m.Name
		if off, ok := longOffsets[m.Name]; ok {
			hdrName = fmt.Sprintf("/%d", off)
		} else {
			hdrName += "/"
		}

		memberOffset := int64(bodies.Len())
		if err := writeMember(&bodies, hdrName, m.ModTime, m.UID, m.GID, m.Mode, m.Data); err != nil {
			return err
		}

		if symbolsFor != nil {
			for _, sym := range symbolsFor(m) {
				symbols[sym] = memberOffset
			}
		}
	}

	if symbolsFor != nil {
		bias := int64(headerSize + len(encodeSymbolIndex(symbols)))
		if bias%2 != 0 {
			bias++
		}
		biased := make(map[string]int64, len(symbols))
		for name, off := range symbols {
			biased[name] = off + bias
		}
		if err := writeMember(w, "/", 0, 0, 0, 0, encodeSymbolIndex(biased)); err != nil {
			return err
		}
	}

	_, err := w.Write(bodies.Bytes())
	return err
}

func encodeSymbolIndex(symbols map[string]int64) []byte {
	names := make([]string, 0, len(symbols))
	for n := range symbols {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(names)))
	buf.Write(countBuf[:])

	for _, n := range names {
		var offBuf [4]byte
		binary.BigEndian.PutUint32(offBuf[:], uint32(symbols[n]))
		buf.Write(offBuf[:])
	}
	for _, n := range names {
		buf.WriteString(n)
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

func writeMember(w io.Writer, name string, mtime int64, uid, gid int, mode uint32, data []byte) error {
	var hdr [headerSize]byte
	copy(hdr[0:16], padRight(name, 16))
	copy(hdr[16:28], padRight(strconv.FormatInt(mtime, 10), 12))
	copy(hdr[28:34], padRight(strconv.Itoa(uid), 6))
	copy(hdr[34:40], padRight(strconv.Itoa(gid), 6))
	copy(hdr[40:48], padRight(strconv.FormatUint(uint64(mode), 8), 8))
	copy(hdr[48:58], padRight(strconv.Itoa(len(data)), 10))
	hdr[58] = '`'
	hdr[59] = '\n'

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if len(data)%2 != 0 {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}
	return nil
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}
