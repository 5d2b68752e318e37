// Package dwarf is a from-scratch reader for DWARF debugging information
// (compilation units, DIE trees, attributes, line programs, ranges, location
// expressions) and Call-Frame Information (.debug_frame / .eh_frame), for use
// by debuggers, profilers, unwinders and symbolizers.
//
// The package never parses an object container itself. It is driven entirely
// through the SectionProvider contract (section.go): callers hand it named
// byte slices plus an endianness and address-size hint, typically backed by
// package elfsection. This mirrors elfutils's split between libdw (DWARF)
// and libelf (ELF) - see _examples/original_source/libdw for the C library
// this package's operations are grounded on.
//
// A Reader is not safe for concurrent use: every lazily-populated cache
// (abbreviations, compilation units, line tables, interned expressions,
// CIE/FDE trees) assumes single-threaded access. Distinct Readers over
// disjoint sources may run in parallel without coordination.
package dwarf
