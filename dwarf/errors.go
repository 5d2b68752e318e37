package dwarf

import "errors"

// Error kinds, per spec §7. Every decoding routine that fails wraps one of
// these sentinels with fmt.Errorf("%w: ...", ...) so callers can use
// errors.Is regardless of the message text attached to a particular
// failure.
var (
	// ErrInvalidFormat indicates a structural violation: a truncated
	// section, a bad length, an unknown opcode at a point where unknowns
	// cannot be ignored, mismatched CIE/FDE sizes, an invalid DWARF
	// version, a misaligned "aligned"-encoded pointer, an address-size
	// mismatch in a CIE v4, and so on.
	ErrInvalidFormat = errors.New("dwarf: invalid format")

	// ErrNoDebugInfo indicates a required section is absent
	// (.debug_line, .debug_ranges, .debug_loc, etc).
	ErrNoDebugInfo = errors.New("dwarf: no debug info")

	// ErrNotPresent indicates the queried attribute/DIE/range simply does
	// not exist. Distinct from ErrInvalidFormat.
	ErrNotPresent = errors.New("dwarf: not present")

	// ErrNoMatch indicates no CU/FDE/range contains the requested PC.
	ErrNoMatch = errors.New("dwarf: no match")

	// ErrUnsupportedForm indicates an attribute form this implementation
	// does not decode (e.g. a future DWARF 5 form).
	ErrUnsupportedForm = errors.New("dwarf: unsupported form")
)
