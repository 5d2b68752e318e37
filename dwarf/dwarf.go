package dwarf

import (
	"fmt"
	"sync/atomic"

	"github.com/dwex-project/dwex/assert"
	"github.com/dwex-project/dwex/logger"
)

// Reader is the root of ownership for one DWARF-bearing object: the set of
// sections, every derived cache (CU index, CIE/FDE trees, expression cache,
// aranges index), and a "last error" slot. It is created once per object
// and destroyed (simply, dropped) after every borrowed handle - DieCursor,
// LineTable, Fde, interned expression - has gone out of use.
//
// Not safe for concurrent use; see doc.go. In builds where the assert
// package's goroutine id is available we record which goroutine is
// currently inside the Reader and panic on reentrant use from another one,
// catching the most common way this invariant gets violated by accident.
type Reader struct {
	prov SectionProvider
	arch Architecture

	// Log receives debug-only notes about quirks this core works around
	// silently (an "eh" CIE augmentation, say) rather than surfacing as
	// errors. Never nil; NewReader defaults it when the caller passes nil.
	Log *logger.Logger

	units   *unitIndex
	aranges *arangesIndex
	cfi     *frameIndex

	lastErr atomic.Value // error

	owner uint64 // goroutine id of the last caller, 0 if none yet
}

// Architecture is the small trait the core consumes for register naming and
// relocation-type classification (spec §6). A nil Architecture is valid;
// this package only consults it for a CIE's default address size, which
// then falls back to one derived from the CFI entry's offset size.
type Architecture interface {
	DefaultAddressSize() int
	RegisterName(regno int) string
	RelocSimpleType(relocType uint32) (ElfRelocType, bool)
}

// ElfRelocType is a narrow classification of an ELF relocation entry,
// enough for CFI encoded-pointer and .debug_loc DW_OP_addr relocation:
// either it adds a symbol's address, or it's something this core doesn't
// attempt to apply itself.
type ElfRelocType int

const (
	RelocNone ElfRelocType = iota
	RelocAbs32
	RelocAbs64
)

// NewReader constructs a Reader over the sections yielded by prov. arch may
// be nil (see Architecture). log may be nil, in which case the Reader logs
// to a private Logger nobody else observes.
func NewReader(prov SectionProvider, arch Architecture, log *logger.Logger) *Reader {
	if log == nil {
		log = logger.NewLogger(0)
	}
	r := &Reader{prov: prov, arch: arch, Log: log}
	r.units = newUnitIndex(r)
	r.aranges = newArangesIndex(r)
	r.cfi = newFrameIndex(r)
	return r
}

func (r *Reader) checkSingleThreaded() func() {
	id := assert.GetGoRoutineID()
	prev := atomic.SwapUint64(&r.owner, id)
	if prev != 0 && prev != id {
		panic(fmt.Sprintf("dwarf: Reader used concurrently from goroutines %d and %d", prev, id))
	}
	return func() { atomic.StoreUint64(&r.owner, 0) }
}

func (r *Reader) fail(err error) error {
	if err != nil {
		r.lastErr.Store(err)
	}
	return err
}

// LastError returns the most recent error recorded as a side effect of a
// failing operation (spec §7's closing paragraph). Callers who prefer
// plain error returns may ignore this entirely.
func (r *Reader) LastError() error {
	if v := r.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// CompilationUnits returns every compilation unit in the object, in file
// order, forcing the full CU index to be built.
func (r *Reader) CompilationUnits() ([]*CompilationUnit, error) {
	defer r.checkSingleThreaded()()
	cus, err := r.units.all()
	return cus, r.fail(err)
}

// CuByOffset finds the compilation unit covering a byte offset into
// .debug_info, extending the CU index as needed.
func (r *Reader) CuByOffset(offset uint64) (*CompilationUnit, error) {
	defer r.checkSingleThreaded()()
	cu, err := r.units.find(offset)
	return cu, r.fail(err)
}

// CuByPc finds the compilation unit whose address range (per the aranges
// index, §4.6) contains pc.
func (r *Reader) CuByPc(pc uint64) (*CompilationUnit, error) {
	defer r.checkSingleThreaded()()
	cu, err := r.aranges.cuByPC(pc)
	return cu, r.fail(err)
}

// IterNext returns the compilation unit immediately following prev in file
// order, or ErrNotPresent if prev was the last one. A nil prev returns the
// first CU.
func (r *Reader) IterNext(prev *CompilationUnit) (*CompilationUnit, error) {
	defer r.checkSingleThreaded()()
	cu, err := r.units.iterNext(prev)
	return cu, r.fail(err)
}

// CuDie returns a DieCursor for the root DIE of cu (its compile_unit or
// partial_unit entry).
func (r *Reader) CuDie(cu *CompilationUnit) DieCursor {
	return DieCursor{cu: cu, offset: cu.HeaderEnd}
}
