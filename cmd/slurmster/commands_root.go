package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/loader"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/normalize"
	"github.com/sourceplane/slurmster/internal/registry"
	"github.com/sourceplane/slurmster/internal/remote"
	"github.com/sourceplane/slurmster/internal/runner"
)

var (
	configFile string
	verbosity  int

	v        *viper.Viper
	settings *loader.Settings
)

var rootCmd = &cobra.Command{
	Use:   "slurmster",
	Short: "Experiment grids on a Slurm cluster: submit → status → fetch",
	Long: "slurmster expands an experiment file into runs, submits one batch job per run over SSH, " +
		"tracks every job in a local registry and fetches finished results.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initSettings(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "experiment.yaml", "Experiment file path")
	flags.StringP("user", "u", "", "Remote user (default: ssh_config User, then $USER)")
	flags.StringP("host", "H", "", "Remote host or ~/.ssh/config alias")
	flags.IntP("port", "p", 22, "SSH port")
	flags.String("key", "", "Private key file")
	flags.String("password-env", "", "Environment variable holding the SSH password")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	flags.Bool("json-logs", false, "Write logs as JSON to stderr")

	registerSetupCommand(rootCmd)
	registerSubmitCommand(rootCmd)
	registerMonitorCommand(rootCmd)
	registerStatusCommand(rootCmd)
	registerFetchCommand(rootCmd)
	registerCancelCommand(rootCmd)
	registerRunsCommand(rootCmd)
	registerPlanCommand(rootCmd)
	registerValidateCommand(rootCmd)
}

// flagBindings maps settings keys onto persistent flags
var flagBindings = map[string]string{
	"user":             "user",
	"host":             "host",
	"ssh.port":         "port",
	"ssh.key_file":     "key",
	"ssh.password_env": "password-env",
	"log.json":         "json-logs",
}

func initSettings(cmd *cobra.Command) error {
	var err error
	v, err = loader.NewViper(loader.HomeDir())
	if err != nil {
		return err
	}
	for key, name := range flagBindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return errors.Wrapf(err, "failed to bind --%s", name)
		}
	}

	settings, err = loader.LoadSettings(v)
	if err != nil {
		return err
	}

	if err := logger.Initialize(settings.Log.JSON, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	logger.Logger.Debugw("Settings loaded",
		"state_dir", settings.StateDir,
		"parallelism", settings.Status.Parallelism)
	return nil
}

// loadExperiment reads, validates and normalises the experiment file
func loadExperiment() (*model.Config, error) {
	cfg, err := loader.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	return normalize.Config(cfg)
}

// target returns the remote user and host the command acts on
func target() (user, host string, err error) {
	host = strings.TrimSpace(v.GetString("host"))
	if host == "" {
		return "", "", errors.WithHint(
			errors.Configurationf("no remote host given"),
			"pass --host or set SLURMSTER_HOST",
		)
	}
	user = remote.LoginUser(host, strings.TrimSpace(v.GetString("user")))
	if user == "" {
		return "", "", errors.WithHint(
			errors.Configurationf("no remote user for %s", host),
			"pass --user or set SLURMSTER_USER",
		)
	}
	return user, host, nil
}

// session bundles what an operation on one registry scope needs
type session struct {
	cfg    *model.Config
	reg    *registry.Registry
	ch     remote.Channel
	runner *runner.Runner
}

// openSession loads the experiment file and its registry; with connect it
// also dials the remote host
func openSession(ctx context.Context, connect bool) (*session, error) {
	cfg, err := loadExperiment()
	if err != nil {
		return nil, err
	}
	user, host, err := target()
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(settings.StateDir, registry.Scope{User: user, Host: host, RemoteDir: cfg.Remote.BaseDir},
		logger.ComponentLogger("registry"))
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, reg: reg}
	if connect {
		ch, err := dial(ctx, user, host)
		if err != nil {
			reg.Close()
			return nil, err
		}
		s.ch = ch
	}

	s.runner = runner.New(cfg, s.ch, reg, runner.Options{
		WorkDir:     ".",
		ConfigFile:  configFile,
		Parallelism: settings.Status.Parallelism,
		QueryRate:   settings.Status.QueryRate,
		Stdout:      os.Stdout,
		Logger:      logger.ComponentLogger("runner"),
	})
	return s, nil
}

func dial(ctx context.Context, user, host string) (*remote.SSH, error) {
	var password string
	if env := settings.SSH.PasswordEnv; env != "" {
		password = os.Getenv(env)
		if password == "" {
			return nil, errors.Configurationf("password variable %s is empty or unset", env)
		}
	}

	return remote.Dial(ctx, remote.SSHOptions{
		User:                  user,
		Host:                  host,
		Port:                  settings.SSH.Port,
		KeyFile:               settings.SSH.KeyFile,
		Password:              password,
		PromptPassword:        password == "",
		KnownHostsFile:        settings.SSH.KnownHosts,
		InsecureIgnoreHostKey: settings.SSH.InsecureIgnoreHostKey,
		DialTimeout:           30 * time.Second,
		Logger:                logger.ComponentLogger("ssh"),
	})
}

func (s *session) Close() {
	if s.ch != nil {
		s.ch.Close()
	}
	s.reg.Close()
}

// selector builds a run selector from --exp and --job
func selector(expName, jobID string) (model.Selector, error) {
	sel := model.Selector{ExpName: expName, JobID: jobID}
	if sel.Empty() {
		return sel, errors.Configurationf("one of --exp or --job is required")
	}
	return sel, nil
}
