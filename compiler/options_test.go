package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NativeLang/NativeCIL/compiler/backend"
)

func TestValidateRejectsBinaryWithISOImage(t *testing.T) {
	opt := Options{
		InputPath:  "in.json",
		OutputPath: "out.elf",
		Format:     backend.FormatBin,
		Image:      ImageISO,
	}

	err := opt.Validate()
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestValidateRejectsUnknownArch(t *testing.T) {
	opt := Options{
		InputPath:  "in.json",
		OutputPath: "out.elf",
		Arch:       "arm64",
	}

	require.ErrorIs(t, opt.Validate(), ErrConfiguration)
}

func TestValidateRequiresInputAndOutput(t *testing.T) {
	require.ErrorIs(t, (Options{OutputPath: "out.elf"}).Validate(), ErrConfiguration)
	require.ErrorIs(t, (Options{InputPath: "in.json"}).Validate(), ErrConfiguration)
}

func TestValidateAcceptsELFWithISOImage(t *testing.T) {
	opt := Options{
		InputPath:  "in.json",
		OutputPath: "out.iso",
		Format:     backend.FormatELF,
		Image:      ImageISO,
		Arch:       "amd64",
	}

	require.NoError(t, opt.Validate())
}
