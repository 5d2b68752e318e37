// Command stackwalker unwinds a thread's call stack by replaying CFI
// programs (dwarf.CfiFrameFor/CfaFor) against a live process or core file,
// the Go-native equivalent of elfutils's src/stack.c (SPEC_FULL.md §4.14).
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwex-project/dwex/arch"
	"github.com/dwex-project/dwex/dwarf"
	"github.com/dwex-project/dwex/errors"
	"github.com/dwex-project/dwex/frontend"
)

var (
	flagPID        int
	flagCore       string
	flagPC         string
	flagSP         string
	flagFP         string
	flagArch       string
	flagSearchPath []string
	flagMaxFrames  int
)

var rootCmd = &cobra.Command{
	Use:   "stackwalker",
	Short: "Unwind a call stack using DWARF call-frame information",
	Long: `stackwalker replays a thread's CFI program, frame by frame, starting
from a seed program counter, stack pointer and (if the innermost frame uses
one) frame pointer, printing the resolved function and source location for
each frame it can symbolize.`,
	RunE: runStackwalker,
}

func init() {
	rootCmd.Flags().IntVar(&flagPID, "pid", 0, "attach to this running process")
	rootCmd.Flags().StringVar(&flagCore, "core", "", "read memory and modules from this core file instead of a live process")
	rootCmd.Flags().StringVar(&flagPC, "pc", "", "seed program counter (hex)")
	rootCmd.Flags().StringVar(&flagSP, "sp", "", "seed stack pointer (hex)")
	rootCmd.Flags().StringVar(&flagFP, "fp", "", "seed frame pointer (hex), if the innermost frame's CFI is frame-pointer-relative")
	rootCmd.Flags().StringVar(&flagArch, "arch", "amd64", "target architecture: amd64, i386, arm, arm64")
	rootCmd.Flags().StringArrayVar(&flagSearchPath, "search-path", frontend.DefaultSearchPaths, "separate-debuginfo search roots")
	rootCmd.Flags().IntVar(&flagMaxFrames, "max-frames", 64, "stop after this many frames")
	rootCmd.MarkFlagRequired("pc")
	rootCmd.MarkFlagRequired("sp")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerSet is the one DWARF register number per architecture this tool
// is able to track across frames: the stack pointer (always) and the
// conventional frame-pointer register (used only when a function's CFI
// defines the CFA relative to it).
type registerSet struct {
	sp, fp uint64
}

func registersFor(a string) (registerSet, error) {
	switch strings.ToLower(a) {
	case "amd64", "x86_64", "x86-64":
		return registerSet{sp: 7, fp: 6}, nil // rsp, rbp
	case "i386", "x86":
		return registerSet{sp: 4, fp: 5}, nil // esp, ebp
	case "arm":
		return registerSet{sp: 13, fp: 11}, nil // sp, r11
	case "arm64", "aarch64":
		return registerSet{sp: 31, fp: 29}, nil // sp, x29
	}
	return registerSet{}, errors.Errorf(errors.UnknownArchitecture, a)
}

func archFor(name string) (dwarf.Architecture, error) {
	switch strings.ToLower(name) {
	case "amd64", "x86_64", "x86-64":
		return arch.AMD64, nil
	case "i386", "x86":
		return arch.I386, nil
	case "arm":
		return arch.ARM, nil
	case "arm64", "aarch64":
		return arch.AArch64, nil
	}
	return nil, errors.Errorf(errors.UnknownArchitecture, name)
}

func runStackwalker(cmd *cobra.Command, args []string) error {
	pc, err := parseHex(flagPC)
	if err != nil {
		return fmt.Errorf("stackwalker: --pc: %w", err)
	}
	sp, err := parseHex(flagSP)
	if err != nil {
		return fmt.Errorf("stackwalker: --sp: %w", err)
	}
	var fp uint64
	if flagFP != "" {
		fp, err = parseHex(flagFP)
		if err != nil {
			return fmt.Errorf("stackwalker: --fp: %w", err)
		}
	}

	a, err := archFor(flagArch)
	if err != nil {
		return err
	}
	regs, err := registersFor(flagArch)
	if err != nil {
		return err
	}
	wordSize := uint64(a.DefaultAddressSize())

	var sess *frontend.Session
	var mem frontend.MemReader

	switch {
	case flagCore != "":
		sess, err = frontend.OpenCore(flagCore)
		if err != nil {
			return err
		}
		cm, err := frontend.OpenCoreMemory(flagCore)
		if err != nil {
			return err
		}
		defer cm.Close()
		mem = cm
	case flagPID != 0:
		sess, err = frontend.AttachProcess(flagPID)
		if err != nil {
			return err
		}
		pm, err := frontend.OpenProcessMemory(flagPID)
		if err != nil {
			return err
		}
		defer pm.Close()
		mem = pm
	default:
		return errors.Errorf(errors.SessionSourceRequired)
	}
	defer sess.Close()

	boldFrame := color.New(color.FgCyan, color.Bold)
	funcColor := color.New(color.FgGreen)
	locColor := color.New(color.FgHiBlack)
	errColor := color.New(color.FgRed)

	for frame := 0; frame < flagMaxFrames; frame++ {
		m, err := sess.ModuleForPC(pc)
		if err != nil {
			fmt.Printf("#%-2d %s\n", frame, errColor.Sprintf("%#016x <no module>", pc))
			break
		}

		debugPath, _ := frontend.FindDebugInfo(m, flagSearchPath)
		r, err := sess.Reader(m, debugPath)
		if err != nil {
			fmt.Printf("#%-2d %s\n", frame, errColor.Sprintf("%#016x <%s, no debuginfo: %v>", pc, m.Name, err))
			break
		}

		fileAddr := m.FileAddr(pc)

		funcName, locStr := "??", ""
		if name, err := sess.AddrToFunc(pc, debugPath); err == nil {
			funcName = name
		}
		if loc, err := sess.AddrToLine(pc, debugPath); err == nil {
			locStr = fmt.Sprintf("%s:%d", loc.File, loc.Line)
		}

		fmt.Printf("#%-2d %s in %s %s\n",
			frame,
			boldFrame.Sprintf("%#016x", pc),
			funcColor.Sprint(funcName),
			locColor.Sprint(locStr))

		fde, err := r.CfiFrameFor(fileAddr)
		if err != nil {
			break
		}
		cfa, err := r.CfaFor(fde, fileAddr)
		if err != nil {
			break
		}
		if cfa.Expr != nil {
			fmt.Fprintln(os.Stderr, errColor.Sprint("stackwalker: DW_CFA_def_cfa_expression frames are not unwound"))
			break
		}

		var cfaAddr uint64
		switch cfa.Register {
		case regs.sp:
			cfaAddr = uint64(int64(sp) + cfa.Offset)
		case regs.fp:
			if fp == 0 {
				fmt.Fprintln(os.Stderr, errColor.Sprint("stackwalker: frame uses a frame-pointer-relative CFA but no --fp was given"))
				return nil
			}
			cfaAddr = uint64(int64(fp) + cfa.Offset)
		default:
			fmt.Fprintf(os.Stderr, "stackwalker: unsupported CFA register %d\n", cfa.Register)
			return nil
		}

		// The CFA is, by construction, the value of the caller's stack
		// pointer immediately before the call instruction that pushed the
		// return address; the word directly below it is that return
		// address on every architecture this toolkit targets.
		retBuf := make([]byte, wordSize)
		if err := mem.ReadAt(cfaAddr-wordSize, retBuf); err != nil {
			break
		}
		retPC := littleEndian(retBuf)
		if retPC == 0 {
			break
		}

		// The standard push-fp prologue saves the caller's frame pointer
		// directly below the return address; read it speculatively so it's
		// available if the caller's own CFI turns out to be fp-relative.
		fpBuf := make([]byte, wordSize)
		var nextFP uint64
		if mem.ReadAt(cfaAddr-2*wordSize, fpBuf) == nil {
			nextFP = littleEndian(fpBuf)
		}

		pc = retPC
		sp = cfaAddr
		fp = nextFP
	}

	return nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	return strconv.ParseUint(s, 16, 64)
}

func littleEndian(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
