package compiler

import (
	"tlog.app/go/errors"

	"github.com/NativeLang/NativeCIL/compiler/backend"
)

// Error kinds. Callers distinguish them with errors.Is; every returned
// error wraps exactly one of these.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrInput             = errors.New("input error")
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
	ErrTool              = errors.New("tool error")
	ErrIO                = errors.New("i/o error")
)

// ImageKind selects the packaging step run after linking.
type ImageKind int

const (
	ImageNone ImageKind = iota
	ImageISO
)

// Options configures one compilation run.
type Options struct {
	InputPath  string
	OutputPath string
	Format     backend.Format
	Image      ImageKind
	Arch       string // "amd64" is the only implemented value

	// Strict upgrades an unsupported opcode from a logged skip to a fatal
	// error.
	Strict bool

	WorkDir      string
	NasmPath     string
	LdPath       string
	XorrisoPath  string
	LimineSys    string
	LimineDeploy string
}

// Validate rejects incompatible flag combinations before any compilation
// work runs: a raw binary is incompatible with the bootloader packaging
// mode and must fail up front.
func (o Options) Validate() error {
	if o.Format == backend.FormatBin && o.Image == ImageISO {
		return errors.Wrap(ErrConfiguration, "--format bin is incompatible with --image iso")
	}

	if o.Arch != "" && o.Arch != "amd64" {
		return errors.Wrap(ErrConfiguration, "unsupported --arch %q", o.Arch)
	}

	if o.InputPath == "" {
		return errors.Wrap(ErrConfiguration, "input path is required")
	}

	if o.OutputPath == "" {
		return errors.Wrap(ErrConfiguration, "--output is required")
	}

	return nil
}
