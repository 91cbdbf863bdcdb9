package names

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeNameCollapsesRuns(t *testing.T) {
	require.Equal(t, "ns_Class_Main", SafeName("ns.Class::Main"))
	require.Equal(t, "a_b", SafeName("a---b"))
	require.Equal(t, "_leading", SafeName(".leading"))
}

func TestSafeNameIdempotent(t *testing.T) {
	for _, in := range []string{"ns.Class::Main(int,int)", "X", "_", "a__b", ""} {
		once := SafeName(in)
		twice := SafeName(once)

		require.Equal(t, once, twice)
	}
}

func TestSafeNameImageIsRestricted(t *testing.T) {
	out := SafeName("weird!@# name$%^with&*()chars")

	for i := 0; i < len(out); i++ {
		require.True(t, isSafe(out[i]), "char %q not in [A-Za-z0-9_]", out[i])
	}
}

func TestBranchLabelIsStable(t *testing.T) {
	h := MethodHash("ns_Class_Main")

	require.Equal(t, BranchLabel(h, 5), BranchLabel(h, 5))
	require.Equal(t, "LB_"+lb4(h)+lb4(5), BranchLabel(h, 5))
}

func lb4(v uint16) string {
	const hex = "0123456789ABCDEF"

	b := [4]byte{
		hex[v>>12&0xF],
		hex[v>>8&0xF],
		hex[v>>4&0xF],
		hex[v&0xF],
	}

	return string(b[:])
}

func TestHash32Deterministic(t *testing.T) {
	require.Equal(t, Hash32([]byte("Hi")), Hash32([]byte("Hi")))
	require.NotEqual(t, Hash32([]byte("Hi")), Hash32([]byte("Bye")))
}
