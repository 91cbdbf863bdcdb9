package compiler

import (
	"context"
	"path/filepath"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/NativeLang/NativeCIL/compiler/backend"
	"github.com/NativeLang/NativeCIL/compiler/backend/amd64"
	"github.com/NativeLang/NativeCIL/compiler/image"
	"github.com/NativeLang/NativeCIL/compiler/lower"
	"github.com/NativeLang/NativeCIL/compiler/metadata"
)

// CompileFile loads opt.InputPath and runs the full lower → emit → assemble
// → link → (optionally) image pipeline.
func CompileFile(ctx context.Context, opt Options) (art backend.Artifact, err error) {
	if err := opt.Validate(); err != nil {
		return backend.Artifact{}, err
	}

	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "input", opt.InputPath)
	defer tr.Finish()

	mod, err := metadata.Load(opt.InputPath)
	if err != nil {
		return backend.Artifact{}, errors.Wrap(ErrInput, "%v", err)
	}

	return Compile(ctx, mod, opt)
}

// Compile runs the pipeline against an already-loaded module.
func Compile(ctx context.Context, mod *metadata.Module, opt Options) (art backend.Artifact, err error) {
	tr := tlog.SpanFromContext(ctx)

	unit, err := lower.New(opt.Strict).Compile(ctx, mod)
	if err != nil {
		return backend.Artifact{}, errors.Wrap(ErrUnsupportedOpcode, "%v", err)
	}

	arch, err := selectArch(opt)
	if err != nil {
		return backend.Artifact{}, err
	}

	workDir := opt.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(opt.OutputPath)
	}

	if err := arch.Initialize(ctx, workDir); err != nil {
		return backend.Artifact{}, errors.Wrap(ErrIO, "initialize backend: %v", err)
	}

	art, err = arch.Compile(ctx, unit, workDir)
	if err != nil {
		return backend.Artifact{}, errors.Wrap(ErrIO, "emit assembly: %v", err)
	}

	art, err = arch.Assemble(ctx, art)
	if err != nil {
		return backend.Artifact{}, errors.Wrap(ErrTool, "%v", err)
	}

	art, err = arch.Link(ctx, art, opt.Format)
	if err != nil {
		return backend.Artifact{}, errors.Wrap(ErrTool, "%v", err)
	}

	tr.Printw("linked", "output", art.OutputPath)

	if opt.Image == ImageISO {
		isoPath, err := image.BuildISO(ctx, image.Options{
			VolumeLabel:  unit.Assembly,
			KernelPath:   art.OutputPath,
			LimineSys:    opt.LimineSys,
			LimineDeploy: opt.LimineDeploy,
			XorrisoPath:  opt.XorrisoPath,
			StageDir:     filepath.Join(workDir, "iso-stage"),
			OutputPath:   opt.OutputPath,
		})
		if err != nil {
			return art, errors.Wrap(ErrTool, "%v", err)
		}

		art.OutputPath = isoPath
	}

	return art, nil
}

func selectArch(opt Options) (backend.Arch, error) {
	switch opt.Arch {
	case "", "amd64":
		return amd64.New(opt.NasmPath, opt.LdPath), nil
	default:
		return nil, errors.Wrap(ErrConfiguration, "unsupported --arch %q", opt.Arch)
	}
}
