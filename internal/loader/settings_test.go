package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaults(t *testing.T) {
	home := t.TempDir()

	v, err := NewViper(home)
	require.NoError(t, err)

	s, err := LoadSettings(v)
	require.NoError(t, err)

	assert.Equal(t, home, s.StateDir)
	assert.Equal(t, 22, s.SSH.Port)
	assert.Equal(t, 1, s.Status.Parallelism)
	assert.Equal(t, 5.0, s.Status.QueryRate)
	assert.Equal(t, 100, s.Monitor.Lines)
	assert.Equal(t, 50, s.Monitor.SubmitLines)
}

func TestSettingsLayering(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, SettingsFileName), []byte(`
[ssh]
port = 2222

[status]
parallelism = 4
`), 0o644))

	t.Setenv("SLURMSTER_SSH_PORT", "2200")
	t.Setenv("SLURMSTER_MONITOR_LINES", "10")

	v, err := NewViper(home)
	require.NoError(t, err)
	s, err := LoadSettings(v)
	require.NoError(t, err)

	assert.Equal(t, 2200, s.SSH.Port, "env overrides file")
	assert.Equal(t, 4, s.Status.Parallelism, "file overrides default")
	assert.Equal(t, 10, s.Monitor.Lines)
}

func TestSettingsValidation(t *testing.T) {
	v, err := NewViper(t.TempDir())
	require.NoError(t, err)

	v.Set("ssh.port", 0)
	_, err = LoadSettings(v)
	assert.Error(t, err)

	v.Set("ssh.port", 22)
	v.Set("status.parallelism", 0)
	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Status.Parallelism)
}
