package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sourceplane/slurmster/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. SLURMSTER_SSH_PORT
const EnvPrefix = "SLURMSTER"

// SettingsFileName is read from the tool home directory when present
const SettingsFileName = "settings.toml"

// Settings are tool-level options, independent of any experiment file
type Settings struct {
	StateDir string          `mapstructure:"state_dir"`
	SSH      SSHSettings     `mapstructure:"ssh"`
	Log      LogSettings     `mapstructure:"log"`
	Status   StatusSettings  `mapstructure:"status"`
	Monitor  MonitorSettings `mapstructure:"monitor"`
}

// SSHSettings configure the remote channel
type SSHSettings struct {
	Port                  int    `mapstructure:"port"`
	KeyFile               string `mapstructure:"key_file"`
	PasswordEnv           string `mapstructure:"password_env"`
	KnownHosts            string `mapstructure:"known_hosts"`
	InsecureIgnoreHostKey bool   `mapstructure:"insecure_ignore_host_key"`
}

// LogSettings configure logger output
type LogSettings struct {
	JSON bool `mapstructure:"json"`
}

// StatusSettings tune reconciliation passes
type StatusSettings struct {
	Parallelism int     `mapstructure:"parallelism"` // 1 = sequential
	QueryRate   float64 `mapstructure:"query_rate"`  // scheduler queries per second, 0 = unlimited
}

// MonitorSettings set default tail lengths
type MonitorSettings struct {
	Lines       int `mapstructure:"lines"`
	SubmitLines int `mapstructure:"submit_lines"`
}

// HomeDir returns the tool home: $SLURMSTER_HOME or ~/.slurmster
func HomeDir() string {
	if dir := os.Getenv(EnvPrefix + "_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".slurmster"
	}
	return filepath.Join(home, ".slurmster")
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper, home string) {
	v.SetDefault("state_dir", home)
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.key_file", "")
	v.SetDefault("ssh.password_env", "")
	v.SetDefault("ssh.known_hosts", "")
	v.SetDefault("ssh.insecure_ignore_host_key", false)
	v.SetDefault("log.json", false)
	v.SetDefault("status.parallelism", 1)
	v.SetDefault("status.query_rate", 5.0)
	v.SetDefault("monitor.lines", 100)
	v.SetDefault("monitor.submit_lines", 50)
}

// NewViper builds a viper instance layered as defaults < settings.toml < env vars.
// Callers bind flags on top.
func NewViper(home string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v, home)

	path := filepath.Join(home, SettingsFileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Configurationf("failed to read settings file %s: %v", path, err)
		}
	}

	return v, nil
}

// LoadSettings unmarshals v and checks ranges
func LoadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Configurationf("failed to unmarshal settings: %v", err)
	}

	if s.StateDir == "" {
		return nil, errors.Configurationf("state_dir must not be empty")
	}
	if s.SSH.Port <= 0 || s.SSH.Port > 65535 {
		return nil, errors.Configurationf("ssh.port %d out of range", s.SSH.Port)
	}
	if s.Status.Parallelism < 1 {
		s.Status.Parallelism = 1
	}
	if s.Status.QueryRate < 0 {
		return nil, errors.Configurationf("status.query_rate must not be negative")
	}
	if s.Monitor.Lines < 0 || s.Monitor.SubmitLines < 0 {
		return nil, errors.Configurationf("monitor line counts must not be negative")
	}

	s.StateDir = expandHome(s.StateDir)
	s.SSH.KeyFile = expandHome(s.SSH.KeyFile)
	s.SSH.KnownHosts = expandHome(s.SSH.KnownHosts)
	return &s, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
