// Package names implements the deterministic symbol-naming rules the
// lowerer relies on: sanitizing bytecode full names into legal assembly
// identifiers and synthesizing stable branch and data labels.
package names

import (
	"fmt"
	"hash/fnv"
)

// SafeName replaces every run of characters outside [A-Za-z0-9_] with a
// single underscore. It is pure and produces identical output for identical
// input regardless of call order, and its image is a subset of
// [A-Za-z0-9_]+, which makes it idempotent: SafeName(SafeName(x)) ==
// SafeName(x), since a string already in that alphabet has no run of
// disallowed characters to collapse.
func SafeName(name string) string {
	out := make([]byte, 0, len(name))

	prevCollapsed := false

	for i := 0; i < len(name); i++ {
		c := name[i]

		if isSafe(c) {
			out = append(out, c)
			prevCollapsed = false

			continue
		}

		if !prevCollapsed {
			out = append(out, '_')
			prevCollapsed = true
		}
	}

	return string(out)
}

func isSafe(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_':
		return true
	default:
		return false
	}
}

// MethodHash computes a stable per-method identity from the full name it is
// given (compiler/lower passes the dotted, type-qualified name), used as the {methodHash:X4} component of branch labels. It is
// deterministic across runs (unlike a runtime object identity), per §9's
// design note.
func MethodHash(fullName string) uint16 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fullName))

	return uint16(h.Sum32())
}

// BranchLabel formats a branch-target label for a given method identity and
// bytecode offset: LB_{methodHash:X4}{offset:X4}.
func BranchLabel(methodHash uint16, offset int) string {
	return fmt.Sprintf("LB_%04X%04X", methodHash, uint16(offset))
}

// Hash32 computes a deterministic 32-bit hash of data, used to name the two
// symbols an ldstr blob needs (one for the byte array, one for the
// continuation).
func Hash32(data []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(data)

	return h.Sum32()
}

// DataLabel formats a hash-derived data/continuation label: LB_{hash:X8}.
func DataLabel(hash uint32) string {
	return fmt.Sprintf("LB_%08X", hash)
}
