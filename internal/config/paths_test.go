package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths_HomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("FINCHAT_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(base, "data"), p.Data)
	assert.Equal(t, filepath.Join(base, "logs"), p.Logs)
}

func TestResolvePaths_DefaultUnderHome(t *testing.T) {
	t.Setenv("FINCHAT_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".finchat"), p.Base)
}

func TestEnsureDirs(t *testing.T) {
	base := filepath.Join(t.TempDir(), "finchat")
	p := Paths{Base: base, Data: filepath.Join(base, "data"), Logs: filepath.Join(base, "logs")}

	require.NoError(t, p.EnsureDirs())
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolveDatabases(t *testing.T) {
	p := Paths{Data: "/var/lib/finchat"}

	db := DatabaseConfig{}
	p.ResolveDatabases(&db)
	assert.Equal(t, "/var/lib/finchat/finance.db", db.Finance)
	assert.Equal(t, "/var/lib/finchat/memory.db", db.Memory)

	db = DatabaseConfig{Finance: "/data/f.db"}
	p.ResolveDatabases(&db)
	assert.Equal(t, "/data/f.db", db.Finance, "explicit paths are kept")
}
