package metadata

import (
	"encoding/json"
	"os"

	"tlog.app/go/errors"
)

// Load reads a Module from name. Real deployments hand this system's
// lowerer a module produced by a full metadata-reader library that decodes
// the managed-assembly container's binary wire format; no such library
// appears anywhere in this project's dependency corpus, and that parsing
// stays outside this system's scope by design. This loader is the
// placeholder for that external collaborator: it decodes the same Module
// shape from JSON, which is enough to drive compiler/lower and its tests
// without depending on a binary format this system never needs to
// understand on its own.
func Load(name string) (*Module, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open module")
	}
	defer f.Close()

	var mod Module

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&mod); err != nil {
		return nil, errors.Wrap(err, "decode module")
	}

	if mod.Name == "" {
		return nil, errors.New("module has no assembly name")
	}

	return &mod, nil
}
