package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range PresetNames() {
		p, err := Preset(name)
		require.NoError(t, err)
		require.NoError(t, p.Validate(), name)
	}
	_, err := Preset("nope")
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	base, err := Preset("test")
	require.NoError(t, err)

	cases := map[string]func(p *Params){
		"logN":       func(p *Params) { p.LogN = 2 },
		"notNTT":     func(p *Params) { p.Q = 0x7ffffec003 },
		"tTooBig":    func(p *Params) { p.T = p.Q },
		"inputBound": func(p *Params) { p.InputBound = int64(p.T) },
		"weight":     func(p *Params) { p.ChallengeWeight = 0 },
		"smudging":   func(p *Params) { p.SmudgingBound = 1 << 40 },
		"setup":      func(p *Params) { p.Setup = "" },
		"attempts":   func(p *Params) { p.MaxAttempts = 0 },
	}
	for name, mutate := range cases {
		p := base
		mutate(&p)
		require.Error(t, p.Validate(), name)
	}
}

func TestMaxClients(t *testing.T) {
	p, err := Preset("test")
	require.NoError(t, err)
	n := p.MaxClients()
	require.Equal(t, 128, n)
	require.LessOrEqual(t, uint64(n)*uint64(p.InputBound), (p.T-1)/2)
	require.Greater(t, uint64(n+1)*uint64(p.InputBound), (p.T-1)/2)

	p.InputBound = 0
	require.Zero(t, p.MaxClients())
}

func TestLoadMatchesBuiltin(t *testing.T) {
	for _, name := range PresetNames() {
		p, err := Load(DefaultPath, name)
		require.NoError(t, err, name)
		want, _ := Preset(name)
		require.Equal(t, want, p)
	}
}

func TestLoadMissingPreset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"presets":{}}`), 0o600))
	_, err := Load(path, "test")
	require.Error(t, err)

	p, err := LoadOrPreset(filepath.Join(dir, "absent.json"), "test")
	require.NoError(t, err)
	require.Equal(t, "test", p.Name)
}

func TestDeriveSeedDomainSeparated(t *testing.T) {
	p, _ := Preset("test")
	a, err := p.DeriveSeed("crs")
	require.NoError(t, err)
	b, err := p.DeriveSeed("pedersen")
	require.NoError(t, err)
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)

	again, _ := p.DeriveSeed("crs")
	require.Equal(t, a, again)

	other, _ := Preset("demo")
	c, _ := other.DeriveSeed("crs")
	require.NotEqual(t, a, c)
}
