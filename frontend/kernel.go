package frontend

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// KernelModule is one entry of /proc/modules.
type KernelModule struct {
	Name     string
	Size     uint64
	UseCount int
	Address  uint64
}

// KernelModules enumerates currently loaded kernel modules by parsing
// /proc/modules (SPEC_FULL.md §4.14, grounded on
// libdwfl/linux-kernel-modules.c's /proc/modules reader). Best-effort: a
// missing /proc (container without it mounted, or a non-Linux platform)
// returns ErrUnsupported rather than panicking.
func KernelModules() ([]KernelModule, error) {
	f, err := os.Open("/proc/modules")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	defer f.Close()

	var out []KernelModule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		size, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		uses, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[5], "0x"), 16, 64)
		if err != nil {
			continue
		}
		out = append(out, KernelModule{Name: fields[0], Size: size, UseCount: uses, Address: addr})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("frontend: %w", err)
	}

	return out, nil
}
