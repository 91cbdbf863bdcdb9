// Package image builds a bootable ISO-9660 image wrapping a linked kernel
// ELF. Staging and image authoring are delegated to external tools
// (xorriso for ISO-9660/Joliet/El Torito, the Limine deploy tool for the
// boot record) — this system only arranges the files and invokes them.
package image

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

const limineConfigTemplate = `TIMEOUT=0

:boot
PROTOCOL=multiboot2
KERNEL_PATH=boot:///kernel.elf
`

// Options configures BuildISO's external tool paths and the source files it
// stages.
type Options struct {
	VolumeLabel  string // sanitized assembly name
	KernelPath   string // linked ELF produced by compiler/backend/amd64.Link
	LimineSys    string // path to limine.sys shipped alongside this tool
	LimineDeploy string // path to the limine-deploy executable

	XorrisoPath string
	StageDir    string
	OutputPath  string
}

// BuildISO stages limine.sys, limine.cfg and kernel.elf, shells out to
// xorriso to author a no-emulation El Torito ISO-9660+Joliet image, then
// runs the bootloader's deploy tool against it.
func BuildISO(ctx context.Context, opt Options) (string, error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "build iso", "volume", opt.VolumeLabel)
	defer tr.Finish()

	if opt.XorrisoPath == "" {
		opt.XorrisoPath = "xorriso"
	}

	if err := os.MkdirAll(opt.StageDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create stage dir %v", opt.StageDir)
	}

	if err := stageFile(opt.LimineSys, filepath.Join(opt.StageDir, "limine.sys")); err != nil {
		return "", errors.Wrap(err, "stage limine.sys")
	}

	if err := stageFile(opt.KernelPath, filepath.Join(opt.StageDir, "kernel.elf")); err != nil {
		return "", errors.Wrap(err, "stage kernel.elf")
	}

	cfgPath := filepath.Join(opt.StageDir, "limine.cfg")
	if err := os.WriteFile(cfgPath, []byte(limineConfigTemplate), 0o644); err != nil {
		return "", errors.Wrap(err, "write limine.cfg")
	}

	args := []string{
		"-as", "mkisofs",
		"-b", "limine.sys",
		"-no-emul-boot", "-boot-load-size", "4", "-boot-info-table",
		"-J", "-V", opt.VolumeLabel,
		"-o", opt.OutputPath,
		opt.StageDir,
	}

	cmd := exec.CommandContext(ctx, opt.XorrisoPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	tr.Printw("authoring iso", "tool", opt.XorrisoPath, "out", opt.OutputPath)

	if err := cmd.Run(); err != nil {
		return "", errors.Wrap(err, "xorriso %v", opt.OutputPath)
	}

	if opt.LimineDeploy != "" {
		deploy := exec.CommandContext(ctx, opt.LimineDeploy, opt.OutputPath)
		deploy.Stdout = os.Stdout
		deploy.Stderr = os.Stderr

		tr.Printw("deploying bootloader record", "tool", opt.LimineDeploy)

		if err := deploy.Run(); err != nil {
			return "", errors.Wrap(err, "limine-deploy %v", opt.OutputPath)
		}
	}

	return opt.OutputPath, nil
}

func stageFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, "read %v", src)
	}

	return os.WriteFile(dst, data, 0o644)
}
