// Package kamek implements the "link" command: the CLI entry point that
// opens a set of PPC object files, resolves externals and a version map,
// and drives one package/linker run per game version, writing whichever
// output formats the user asked for.
package kamek

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/Manu343726/kamek/pkg/kamek/addrmap"
	"github.com/Manu343726/kamek/pkg/kamek/dol"
	"github.com/Manu343726/kamek/pkg/kamek/elflink"
	"github.com/Manu343726/kamek/pkg/kamek/externals"
	"github.com/Manu343726/kamek/pkg/kamek/linker"
	"github.com/Manu343726/kamek/pkg/kamek/output"
	"github.com/Manu343726/kamek/pkg/utils"
)

var (
	flagDynamic    bool
	flagStatic     string
	flagExterns    string
	flagVersionMap string
	flagOutKamek   string
	flagOutXML     string
	flagOutGecko   string
	flagOutDOL     string
	flagDebug      bool
	flagLogFile    string
)

// LinkCmd is the "kamek link" subcommand.
var LinkCmd = &cobra.Command{
	Use:   "link OBJ.o [OBJ2.o ...]",
	Short: "Link relocatable PPC objects into a Kamek patch",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLink,
}

func init() {
	LinkCmd.Flags().BoolVar(&flagDynamic, "dynamic", false, "link for a dynamically loaded Kamek binary")
	LinkCmd.Flags().StringVar(&flagStatic, "static", "", "link against a fixed load address (hex, e.g. 0x80003100)")
	LinkCmd.Flags().StringVar(&flagExterns, "externals", "", "externals map file")
	LinkCmd.Flags().StringVar(&flagVersionMap, "version-map", "", "version map YAML file")
	LinkCmd.Flags().StringVar(&flagOutKamek, "output-kamek", "", "output Kamek binary path ($KV$ substituted per version)")
	LinkCmd.Flags().StringVar(&flagOutXML, "output-xml", "", "output riivolution XML path ($KV$ substituted per version)")
	LinkCmd.Flags().StringVar(&flagOutGecko, "output-gecko", "", "output Gecko code path ($KV$ substituted per version)")
	LinkCmd.Flags().StringVar(&flagOutDOL, "output-dol", "", "input.dol:output-$KV$.dol")
	LinkCmd.Flags().BoolVar(&flagDebug, "debug", false, "verbose structured logging")
	LinkCmd.Flags().StringVar(&flagLogFile, "log-file", "", "tee logs to this file in addition to stderr")
}

func setupLogger() (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})}
	closeFn := func() {}

	if flagLogFile != "" {
		f, err := os.Create(flagLogFile)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closeFn = func() { f.Close() }
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

func runLink(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	if flagDynamic == (flagStatic != "") {
		return fail("exactly one of --dynamic or --static must be given")
	}

	objPaths := append([]string(nil), args...)
	utils.HumanSort(objPaths)

	modules := make([]elflink.Module, 0, len(objPaths))
	for _, p := range objPaths {
		ef, err := elf.Open(p)
		if err != nil {
			return fail("opening %s: %v", p, err)
		}
		defer ef.Close()
		modules = append(modules, elflink.Module{Path: p, ELF: ef})
		logger.Debug("loaded object", "path", p)
	}

	externs := map[string]uint32{}
	if flagExterns != "" {
		f, err := os.Open(flagExterns)
		if err != nil {
			return fail("opening externals file: %v", err)
		}
		defer f.Close()
		externs, err = externals.Load(f)
		if err != nil {
			return fail("parsing externals file: %v", err)
		}
	}

	vmap := addrmap.Default()
	if flagVersionMap != "" {
		f, err := os.Open(flagVersionMap)
		if err != nil {
			return fail("opening version map: %v", err)
		}
		defer f.Close()
		vmap, err = addrmap.LoadVersionMap(f)
		if err != nil {
			return fail("parsing version map: %v", err)
		}
	}

	var staticBase uint32
	if flagStatic != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(flagStatic, "0x"), 16, 32)
		if err != nil {
			return fail("invalid --static address %q: %v", flagStatic, err)
		}
		staticBase = uint32(v)
	}

	for _, version := range vmap.Names {
		mapper := vmap.Mappers[version]

		// Externs name fixed addresses in the already-running game image,
		// so they translate per version; the linked code's own addresses
		// are computed fresh by the layout cursor and need no translation.
		versionExterns := make(map[string]uint32, len(externs))
		for name, addr := range externs {
			versionExterns[name] = mapper.Remap(addr)
		}

		l := linker.New()
		var result *linker.Result
		if flagDynamic {
			result, err = l.LinkDynamic(modules, versionExterns)
		} else {
			result, err = l.LinkStatic(modules, mapper.Remap(staticBase), versionExterns)
		}
		if err != nil {
			return fail("linking version %q: %v", version, err)
		}

		if err := writeOutputs(version, result); err != nil {
			return err
		}
		logger.Info("linked version", "version", version, "commands", len(result.Commands))
	}

	return nil
}

func writeOutputs(version string, result *linker.Result) error {
	substitute := func(path string) string {
		return strings.ReplaceAll(path, "$KV$", version)
	}

	if flagOutKamek != "" {
		if err := writeFile(substitute(flagOutKamek), func(f *os.File) error {
			return output.EncodeKbin(f, result.Layout, result.Commands)
		}); err != nil {
			return err
		}
	}

	if flagOutXML != "" {
		if err := writeFile(substitute(flagOutXML), func(f *os.File) error {
			return output.EncodeRiivolution(f, result.Commands)
		}); err != nil {
			return err
		}
	}

	if flagOutGecko != "" {
		codes, err := output.EncodeGecko(result.Commands)
		if err != nil {
			return fail("encoding gecko codes: %v", err)
		}
		if err := writeFile(substitute(flagOutGecko), func(f *os.File) error {
			for _, code := range codes {
				if err := binary.Write(f, binary.BigEndian, code); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}

	if flagOutDOL != "" {
		in, out, ok := strings.Cut(substitute(flagOutDOL), ":")
		if !ok {
			return fail("--output-dol expects input.dol:output.dol")
		}

		inFile, err := os.Open(in)
		if err != nil {
			return fail("opening input dol %s: %v", in, err)
		}
		defer inFile.Close()

		f, err := dol.Open(inFile)
		if err != nil {
			return fail("parsing input dol %s: %v", in, err)
		}

		if err := output.EncodeDOL(f, result.Layout, result.Layout.OutputStart, result.Commands); err != nil {
			return fail("patching dol: %v", err)
		}

		if err := writeFile(out, func(o *os.File) error { return f.Save(o) }); err != nil {
			return err
		}
	}

	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fail("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return fail("writing %s: %v", path, err)
	}
	return nil
}

func fail(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	color.New(color.FgRed).Fprintln(os.Stderr, msg)
	return fmt.Errorf("%s", msg)
}
