package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/NativeLang/NativeCIL/compiler"
	"github.com/NativeLang/NativeCIL/compiler/backend"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "lower a managed bytecode module and emit a bootable kernel",
		Action:      compileAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "nativecil",
		Description: "nativecil compiles a managed bytecode module into a freestanding x86-64 kernel",
		Commands: []*cli.Command{
			compileCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	opt, input, err := parseArgs(c.Args)
	if err != nil {
		return errors.Wrap(compiler.ErrConfiguration, "%v", err)
	}

	opt.InputPath = input

	art, err := compiler.CompileFile(ctx, opt)
	if err != nil {
		return errors.Wrap(err, "compile %v", input)
	}

	fmt.Printf("wrote %s\n", art.OutputPath)

	return nil
}

// parseArgs reads the positional input path and --key=value flags from
// args. nikand.dev/go/cli's Command exposes only
// Name/Description/Commands/Action/Args/RunAndExit in this project's
// dependency corpus, with no demonstrated flag-registration call, so flags
// are parsed by hand from the positional argument list rather than guessed
// at from an unverified API surface.
func parseArgs(args cli.Args) (compiler.Options, string, error) {
	opt := compiler.Options{OutputPath: "a.out", Format: backend.FormatELF}
	var input string

	for _, a := range args {
		key, val, hasVal := strings.Cut(strings.TrimPrefix(a, "--"), "=")

		if !strings.HasPrefix(a, "--") {
			input = a

			continue
		}

		if !hasVal {
			return opt, "", errors.New("flag %q requires a value", a)
		}

		switch key {
		case "output":
			opt.OutputPath = val
		case "format":
			switch val {
			case "bin":
				opt.Format = backend.FormatBin
			case "elf":
				opt.Format = backend.FormatELF
			default:
				return opt, "", errors.New("unknown --format %q", val)
			}
		case "image":
			switch val {
			case "none":
				opt.Image = compiler.ImageNone
			case "iso":
				opt.Image = compiler.ImageISO
			default:
				return opt, "", errors.New("unknown --image %q", val)
			}
		case "arch":
			opt.Arch = val
		case "strict":
			switch val {
			case "true":
				opt.Strict = true
			case "false":
				opt.Strict = false
			default:
				return opt, "", errors.New("unknown --strict %q", val)
			}
		default:
			return opt, "", errors.New("unknown flag %q", a)
		}
	}

	return opt, input, nil
}
