// Command symbolizer resolves runtime addresses to source file:line and
// function name, the Go-native equivalent of elfutils's src/addr2line.c
// (SPEC_FULL.md §4.14 and §4's demangling extension).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/ianlancetaylor/demangle"
	"github.com/spf13/cobra"

	"github.com/dwex-project/dwex/frontend"
)

var (
	flagExe        string
	flagPID        int
	flagCore       string
	flagSearchPath []string
	flagConfig     string
	flagNoDemangle bool
	flagFunctions  bool
	flagAddresses  bool
)

var rootCmd = &cobra.Command{
	Use:   "symbolizer [addresses...]",
	Short: "Resolve addresses to source locations and function names",
	Long: `symbolizer reads hexadecimal addresses, one per argument or one per
line of stdin if none are given, and prints the source file:line and (with
--functions) the function name each address falls within.`,
	RunE: runSymbolizer,
}

func init() {
	rootCmd.Flags().StringVar(&flagExe, "exe", "", "resolve addresses against this file's own module range instead of a live process")
	rootCmd.Flags().IntVar(&flagPID, "pid", 0, "resolve addresses as runtime addresses within this running process")
	rootCmd.Flags().StringVar(&flagCore, "core", "", "resolve addresses as runtime addresses within this core file")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to a dwex config file (default: search $HOME/.dwex.yaml)")
	rootCmd.Flags().StringArrayVar(&flagSearchPath, "search-path", nil, "separate-debuginfo search roots, appended to the config's own")
	rootCmd.Flags().BoolVar(&flagNoDemangle, "no-demangle", false, "don't demangle Itanium C++/Rust symbol names")
	rootCmd.Flags().BoolVarP(&flagFunctions, "functions", "f", true, "print the function name above each source location")
	rootCmd.Flags().BoolVarP(&flagAddresses, "addresses", "a", false, "print the input address before its resolution")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSymbolizer(cmd *cobra.Command, args []string) error {
	cfg, err := frontend.LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	searchPaths := append(append([]string{}, cfg.SearchPaths...), flagSearchPath...)

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	addrColor := color.New(color.FgCyan)
	funcColor := color.New(color.FgGreen, color.Bold)
	locColor := color.New(color.FgYellow)
	errColor := color.New(color.FgRed)

	resolve := func(addrText string) {
		addr, err := parseHex(addrText)
		if err != nil {
			fmt.Fprintln(os.Stderr, errColor.Sprintf("symbolizer: %v", err))
			return
		}

		if flagAddresses {
			fmt.Print(addrColor.Sprintf("%#016x ", addr))
		}

		debugPath := ""
		if m, err := sess.ModuleForPC(addr); err == nil {
			if p, err := frontend.FindDebugInfo(m, searchPaths); err == nil {
				debugPath = p
			}
		}

		if flagFunctions {
			name, err := sess.AddrToFunc(addr, debugPath)
			if err != nil {
				fmt.Print(funcColor.Sprint("??"))
			} else {
				fmt.Print(funcColor.Sprint(demangleName(name)))
			}
			fmt.Print(" at ")
		}

		loc, err := sess.AddrToLine(addr, debugPath)
		if err != nil {
			fmt.Println(locColor.Sprint("??:0"))
			return
		}
		fmt.Println(locColor.Sprintf("%s:%d", loc.File, loc.Line))
	}

	if len(args) > 0 {
		for _, a := range args {
			resolve(a)
		}
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resolve(line)
	}
	return scanner.Err()
}

func openSession() (*frontend.Session, error) {
	switch {
	case flagCore != "":
		return frontend.OpenCore(flagCore)
	case flagPID != 0:
		return frontend.AttachProcess(flagPID)
	case flagExe != "":
		ef, err := elfModule(flagExe)
		if err != nil {
			return nil, err
		}
		return frontend.NewSession([]*frontend.Module{ef}, nil), nil
	}
	return nil, fmt.Errorf("symbolizer: one of --exe, --pid or --core is required")
}

func elfModule(path string) (*frontend.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbolizer: %w", err)
	}
	f.Close()
	// A bare file, with no process mapping, is addressed purely in file
	// (DWARF) virtual address space: LoadBias stays zero and the module's
	// range is wide enough to contain any address the caller passes in.
	return &frontend.Module{Name: path, Path: path, LowAddr: 0, HighAddr: ^uint64(0)}, nil
}

func demangleName(name string) string {
	if flagNoDemangle {
		return name
	}
	return demangle.Filter(name)
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	return strconv.ParseUint(s, 16, 64)
}
