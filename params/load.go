package params

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultPath is where the commands look for the presets file.
const DefaultPath = "Parameters/params.json"

// paramsFile mirrors the JSON schema stored on disk.
type paramsFile struct {
	Presets map[string]Params `json:"presets"`
}

var builtin = map[string]Params{
	// test is insecure and only sized for fast unit tests.
	"test": {
		Name: "test", LogN: 5, Q: 0x7ffffec001, T: 65537,
		Sigma: 3.2, ErrorBound: 19, InputBound: 255,
		ChallengeWeight: 8, SmudgingBound: 1 << 10, MaxAttempts: 256,
		Setup: "mario/test",
	},
	"demo": {
		Name: "demo", LogN: 8, Q: 0x7ffffec001, T: 65537,
		Sigma: 3.2, ErrorBound: 19, InputBound: 1023,
		ChallengeWeight: 16, SmudgingBound: 1 << 12, MaxAttempts: 256,
		Setup: "mario/demo",
	},
	"default": {
		Name: "default", LogN: 11, Q: 0x7ffffec001, T: 65537,
		Sigma: 3.2, ErrorBound: 19, InputBound: 1023,
		ChallengeWeight: 32, SmudgingBound: 1 << 14, MaxAttempts: 512,
		Setup: "mario/default",
	},
}

// Preset returns one of the built-in parameter sets.
func Preset(name string) (Params, error) {
	p, ok := builtin[name]
	if !ok {
		return Params{}, fmt.Errorf("params: unknown preset %q (have %v)", name, PresetNames())
	}
	return p, nil
}

// PresetNames lists the built-in presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load reads the named preset from a params JSON file. Relative paths are
// also tried from the parent directories so tests can run from a package dir.
func Load(path, name string) (Params, error) {
	raw, resolved, err := readFileWithFallback(path)
	if err != nil {
		return Params{}, err
	}
	var pf paramsFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return Params{}, fmt.Errorf("parse %s: %w", resolved, err)
	}
	p, ok := pf.Presets[name]
	if !ok {
		return Params{}, fmt.Errorf("%s: no preset %q", resolved, name)
	}
	if p.Name == "" {
		p.Name = name
	}
	if err := p.Validate(); err != nil {
		return Params{}, fmt.Errorf("%s: preset %q: %w", resolved, name, err)
	}
	return p, nil
}

// LoadOrPreset prefers the on-disk preset and falls back to the built-in one
// when the file is absent.
func LoadOrPreset(path, name string) (Params, error) {
	if _, _, err := readFileWithFallback(path); err != nil {
		return Preset(name)
	}
	return Load(path, name)
}

func readFileWithFallback(path string) ([]byte, string, error) {
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		candidates = append(candidates, filepath.Join("..", path), filepath.Join("..", "..", path))
	}
	for _, p := range candidates {
		if data, err := os.ReadFile(p); err == nil {
			return data, p, nil
		}
	}
	return nil, "", fmt.Errorf("read %s: not found", path)
}
