// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package errors

// error messages raised by the front-end and CLI layers (the dwarf core
// carries its own sentinels in dwarf/errors.go and is not curated here).
const (
	// front-end session/module resolution
	ModuleNotFound = "frontend: no module covers pc %#x"
	NoBackingFile  = "frontend: module %q has no backing file"

	// debuginfo search
	DebugInfoNotFound = "frontend: no debuginfo found for %s"
	HomeDirUnknown    = "frontend: locating home directory: %v"

	// config
	ConfigReadError   = "frontend: reading config: %v"
	ConfigDecodeError = "frontend: decoding config: %v"

	// core files
	NotACoreFile = "frontend: %s is not a core file"
	NoNTFileNote = "frontend: no NT_FILE note found"

	// live/core process memory
	ShortMemoryRead          = "frontend: short read at %#x: got %d of %d bytes"
	SegmentNotCovered        = "frontend: address %#x not covered by any PT_LOAD segment"
	ProcessMemoryUnavailable = "frontend: opening process memory: %v"

	// archive container
	ArchiveBadMagic      = "archive: not an ar archive (bad magic)"
	ArchiveBadHeader     = "archive: malformed member header (bad end marker)"
	ArchiveBadSize       = "archive: malformed member size: %v"
	ArchiveBadLongName   = "archive: malformed long-name reference %q"
	ArchiveLongNameRange = "archive: long-name offset %d out of range"

	// CLI argument validation
	UnknownArchitecture   = "unknown architecture %q"
	SessionSourceRequired = "one of --pid or --core is required"
)
