// Package leb128 implements the Little Endian Base 128 variable-length
// encoding used throughout the DWARF debugging format.
//
// We only need to decode LEB128 numbers, never encode them.
//
// Details of the method can be found in the DWARF4 Standard on page 161,
// "7.6 Variable Length Data".
package leb128
