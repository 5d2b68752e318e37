// Command archiver is a thin ar/ranlib-alike over the archive package: it
// creates, lists and extracts SysV ar containers, building the "/"
// symbol-index member the way elfutils's src/ar.c and src/ranlib.c do
// (SPEC_FULL.md §4.15).
package main

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	dwexarchive "github.com/dwex-project/dwex/archive"
)

var rootCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Create, list and extract SysV ar archives",
}

var createCmd = &cobra.Command{
	Use:   "create <archive> <member...>",
	Short: "Create an archive from a set of object files",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCreate,
}

var listCmd = &cobra.Command{
	Use:   "list <archive>",
	Short: "List an archive's members",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var extractCmd = &cobra.Command{
	Use:   "extract <archive> [outdir]",
	Short: "Extract every member of an archive into outdir (default: current directory)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runExtract,
}

var flagNoIndex bool

func init() {
	createCmd.Flags().BoolVar(&flagNoIndex, "no-index", false, "don't build a ranlib-style symbol index")
	rootCmd.AddCommand(createCmd, listCmd, extractCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	archivePath := args[0]
	paths := args[1:]

	members := make([]dwexarchive.Member, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("archiver: %w", err)
		}
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("archiver: %w", err)
		}
		members = append(members, dwexarchive.Member{
			Name:    filepath.Base(p),
			ModTime: info.ModTime().Unix(),
			Mode:    0644,
			Data:    data,
		})
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("archiver: %w", err)
	}
	defer out.Close()

	var symbolsFor func(dwexarchive.Member) []string
	if !flagNoIndex {
		symbolsFor = definedGlobalSymbols
	}

	if err := dwexarchive.Write(out, members, symbolsFor); err != nil {
		return fmt.Errorf("archiver: %w", err)
	}

	color.New(color.FgGreen).Printf("wrote %s with %d member(s)\n", archivePath, len(members))
	return nil
}

// definedGlobalSymbols returns the name of every STB_GLOBAL/STB_WEAK symbol
// m's data defines (section index != SHN_UNDEF), the same filter ranlib.c
// applies when deciding which symbols earn an entry in the "/" index
// member. Non-ELF members (the long-name and symbol-index members
// themselves are never passed here) simply contribute no symbols.
func definedGlobalSymbols(m dwexarchive.Member) []string {
	ef, err := elf.NewFile(newReaderAt(m.Data))
	if err != nil {
		return nil
	}
	defer ef.Close()

	syms, err := ef.Symbols()
	if err != nil {
		return nil
	}

	var names []string
	for _, s := range syms {
		if s.Name == "" || s.Section == elf.SHN_UNDEF {
			continue
		}
		bind := elf.ST_BIND(s.Info)
		if bind == elf.STB_GLOBAL || bind == elf.STB_WEAK {
			names = append(names, s.Name)
		}
	}
	return names
}

func runList(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("archiver: %w", err)
	}
	defer f.Close()

	a, err := dwexarchive.Read(f)
	if err != nil {
		return fmt.Errorf("archiver: %w", err)
	}

	for _, m := range a.Members {
		fmt.Printf("%6d  %s\n", len(m.Data), m.Name)
	}
	if len(a.Symbols) > 0 {
		color.New(color.FgHiBlack).Printf("(%d indexed symbol(s))\n", len(a.Symbols))
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("archiver: %w", err)
	}
	defer f.Close()

	a, err := dwexarchive.Read(f)
	if err != nil {
		return fmt.Errorf("archiver: %w", err)
	}

	outDir := "."
	if len(args) == 2 {
		outDir = args[1]
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("archiver: %w", err)
	}

	for _, m := range a.Members {
		dest := filepath.Join(outDir, filepath.Base(m.Name))
		if err := os.WriteFile(dest, m.Data, os.FileMode(m.Mode)|0600); err != nil {
			return fmt.Errorf("archiver: writing %s: %w", dest, err)
		}
		fmt.Println(dest)
	}
	return nil
}

// readerAt adapts an in-memory byte slice to io.ReaderAt for elf.NewFile,
// which needs random access to parse section headers out of member order.
type readerAt struct {
	data []byte
}

func newReaderAt(data []byte) *readerAt {
	return &readerAt{data: data}
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
