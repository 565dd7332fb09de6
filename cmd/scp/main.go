package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	scperrors "github.com/scpkg/scpload/errors"
	"github.com/scpkg/scpload/image"
	"github.com/scpkg/scpload/loader"
)

func main() {
	app := cli.NewApp()
	app.Name = "scp"
	app.Usage = "inspect, verify and run SCP modules"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML loader configuration",
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:      "inspect",
			Action:    inspect,
			Usage:     "dump the header and tables of an SCP file",
			ArgsUsage: "<file.scp>",
			Args:      true,
		},
		{
			Name:      "verify",
			Action:    verify,
			Usage:     "decode, validate and checksum an SCP file",
			ArgsUsage: "<file.scp>",
			Args:      true,
		},
		{
			Name:      "call",
			Action:    call,
			Usage:     "load an SCP file and invoke one exported function",
			ArgsUsage: "<file.scp> <function> [args...]",
			Flags: []cli.Flag{
				&cli.UintFlag{Name: "version", Aliases: []string{"v"}, Usage: "module version to register under", Value: 1},
			},
			Args: true,
		},
		{
			Name:      "interactive",
			Aliases:   []string{"i"},
			Action:    interactive,
			Usage:     "browse and call exported functions with a TUI",
			ArgsUsage: "<file.scp>",
			Args:      true,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func inspect(ctx *cli.Context) error {
	img, err := decodeFile(ctx.Args().First())
	if err != nil {
		return err
	}

	hdr := img.Header
	fmt.Printf("SCP %d.%d  arch=%s  callconv=%s\n",
		hdr.VersionMajor, hdr.VersionMinor, hdr.Arch, hdr.CallConv)
	fmt.Printf("header: %d bytes, code blob: %d bytes, checksum: %#08x\n",
		hdr.HeaderSize, hdr.CodeBlobSize, hdr.Checksum)
	fmt.Printf("thread-safe: %v, requires-gc: %v\n", hdr.ThreadSafe(), hdr.RequiresGC())

	fmt.Printf("\nFunctions (%d):\n", len(img.Functions))
	for i := range img.Functions {
		f := &img.Functions[i]
		fmt.Printf("  %s  @%#x%s\n", signature(f), f.EntryOffset, funcFlags(f))
	}

	if len(img.Types) > 0 {
		fmt.Printf("\nTypes (%d):\n", len(img.Types))
		for _, t := range img.Types {
			fmt.Printf("  %s (id=%d, %d bytes, %d fields)\n", t.Name, t.ID, t.Size, len(t.Fields))
			for _, fld := range t.Fields {
				fmt.Printf("    +%d %s\n", fld.Offset, fld.Type)
			}
		}
	}

	if len(img.Dependencies) > 0 {
		fmt.Printf("\nDependencies (%d):\n", len(img.Dependencies))
		for _, d := range img.Dependencies {
			fmt.Printf("  %s >= %d\n", d.Name, d.RequiredVersion)
		}
	}

	for _, w := range img.Warnings {
		fmt.Printf("\nwarning: %s\n", w)
	}
	return nil
}

func verify(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: scp verify <file.scp>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if _, err := image.DecodeVerified(data); err != nil {
		var serr *scperrors.Error
		if errors.As(err, &serr) && serr.Kind == scperrors.KindChecksum {
			// Exit 2 marks corruption of a structurally valid file, so
			// callers can retry a transfer instead of rejecting the input.
			return cli.Exit(fmt.Sprintf("%s: corrupted (checksum mismatch): %v", path, err), 2)
		}
		return fmt.Errorf("%s: malformed: %w", path, err)
	}
	fmt.Printf("%s: OK\n", path)
	return nil
}

func call(ctx *cli.Context) error {
	args := ctx.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: scp call <file.scp> <function> [args...]")
	}
	path, fnName := args[0], args[1]

	cfg, err := loadConfig(ctx.String("config"))
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ld := loader.New(append(cfg.loaderOptions(), loader.WithLogger(logger))...)
	defer ld.Close()

	if _, err := ld.Load(moduleName(path), uint32(ctx.Uint("version")), data); err != nil {
		return err
	}
	ref, err := ld.LookupFunction(fnName)
	if err != nil {
		return err
	}

	callArgs, err := convertArgs(ref.Module().Image().Function(fnName), args[2:])
	if err != nil {
		return err
	}
	result, err := ref.Invoke(context.Background(), callArgs...)
	if err != nil {
		return err
	}
	if result != nil {
		fmt.Printf("%v\n", result)
	}
	return nil
}

func interactive(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: scp interactive <file.scp>")
	}
	cfg, err := loadConfig(ctx.String("config"))
	if err != nil {
		return err
	}
	return runInteractive(path, cfg)
}

func decodeFile(path string) (*image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("usage: scp inspect <file.scp>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return image.Decode(data)
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		lvl = parsed
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// moduleName derives a registry name from a file path: base name minus
// the extension.
func moduleName(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func signature(f *image.FunctionEntry) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	s := f.Name + "(" + strings.Join(params, ", ") + ")"
	if f.Return != image.Void {
		s += " " + f.Return.String()
	}
	return s
}

func funcFlags(f *image.FunctionEntry) string {
	if f.Pure() {
		return "  [pure]"
	}
	return ""
}
