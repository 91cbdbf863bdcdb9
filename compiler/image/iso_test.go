package image

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeXorrisoScript is a shell script standing in for xorriso: it just touches the
// requested output path so BuildISO's plumbing can be tested without a real
// ISO-9660 authoring tool installed.
const fakeXorrisoScript = "#!/bin/sh\n" +
	"prev=\"\"\nlast=\"\"\n" +
	"for a in \"$@\"; do prev=\"$last\"; last=\"$a\"; done\n" +
	"touch \"$prev\"\n"

func TestBuildISOStagesFilesAndInvokesXorriso(t *testing.T) {
	dir := t.TempDir()

	kernel := filepath.Join(dir, "kernel.elf")
	require.NoError(t, os.WriteFile(kernel, []byte("\x7fELF"), 0o644))

	limine := filepath.Join(dir, "limine.sys")
	require.NoError(t, os.WriteFile(limine, []byte("limine"), 0o644))

	fakeTool := filepath.Join(dir, "fake-xorriso.sh")
	require.NoError(t, os.WriteFile(fakeTool, []byte(fakeXorrisoScript), 0o755))

	out := filepath.Join(dir, "hello.iso")

	path, err := BuildISO(context.Background(), Options{
		VolumeLabel: "hello",
		KernelPath:  kernel,
		LimineSys:   limine,
		XorrisoPath: fakeTool,
		StageDir:    filepath.Join(dir, "stage"),
		OutputPath:  out,
	})
	require.NoError(t, err)
	require.Equal(t, out, path)

	require.FileExists(t, filepath.Join(dir, "stage", "kernel.elf"))
	require.FileExists(t, filepath.Join(dir, "stage", "limine.sys"))
	require.FileExists(t, filepath.Join(dir, "stage", "limine.cfg"))
}
