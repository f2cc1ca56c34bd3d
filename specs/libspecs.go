// Package specs bundles the default library spec tree shipped with
// the binary and knows how to load it, plus any user-supplied specs
// dropped into a configured directory, into the map libspec.SymbolTable
// expects.
package specs

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pyslice/pkg/libspec"
)

//go:embed *.json
var bundled embed.FS

// Load decodes every bundled spec and, if dir is non-empty, every
// *.json file in dir, keyed by file basename without extension. Specs
// found in dir override a bundled spec of the same name.
func Load(dir string) (map[string]*libspec.ModuleSpec, error) {
	library := make(map[string]*libspec.ModuleSpec)

	entries, err := bundled.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("reading bundled specs: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := bundled.ReadFile(e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading bundled spec %s: %w", e.Name(), err)
		}
		mod, err := libspec.LoadModule(data)
		if err != nil {
			return nil, fmt.Errorf("loading bundled spec %s: %w", e.Name(), err)
		}
		library[keyFor(e.Name(), mod)] = mod
	}

	if dir == "" {
		return library, nil
	}
	overrides, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return library, nil
		}
		return nil, fmt.Errorf("reading spec dir %s: %w", dir, err)
	}
	for _, e := range overrides {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading spec %s: %w", e.Name(), err)
		}
		mod, err := libspec.LoadModule(data)
		if err != nil {
			return nil, fmt.Errorf("loading spec %s: %w", e.Name(), err)
		}
		library[keyFor(e.Name(), mod)] = mod
	}
	return library, nil
}

// keyFor prefers a spec's declared name over its filename, so that
// __builtins__.json and builtins.json alike register the module under
// the name libspec.SymbolTable actually looks up.
func keyFor(filename string, mod *libspec.ModuleSpec) string {
	if mod.Name != "" {
		return mod.Name
	}
	return strings.TrimSuffix(filename, ".json")
}
