package model

// Config is the experiment file: where runs live remotely, how the
// scheduler is driven and which parameter sets to run.
type Config struct {
	Remote RemoteConfig `yaml:"remote" json:"remote"`
	Files  FilesConfig  `yaml:"files" json:"files"`
	Slurm  SlurmConfig  `yaml:"slurm" json:"slurm"`
	Run    RunConfig    `yaml:"run" json:"run"`
}

// RemoteConfig locates the experiment tree on the cluster
type RemoteConfig struct {
	BaseDir string      `yaml:"base_dir" json:"base_dir"`
	VenvDir string      `yaml:"venv_dir" json:"venv_dir"` // relative to BaseDir unless absolute
	Setup   SetupConfig `yaml:"setup" json:"setup"`
}

// SetupConfig controls remote environment bootstrap
type SetupConfig struct {
	CreateVenv   *bool  `yaml:"create_venv" json:"create_venv"`
	Requirements string `yaml:"requirements" json:"requirements"` // local path, pushed next to BaseDir
}

// CreatesVenv reports whether setup should build the virtualenv (default true)
func (s SetupConfig) CreatesVenv() bool {
	return s.CreateVenv == nil || *s.CreateVenv
}

// FilesConfig lists local files pushed under BaseDir during setup
type FilesConfig struct {
	Push []string `yaml:"push" json:"push"`
}

// SlurmConfig holds the directive block and the workload-manager command surface.
// Command templates accept {script}, {job_id} and {remote_dir}.
type SlurmConfig struct {
	Directives    string `yaml:"directives" json:"directives"`
	SubmitCommand string `yaml:"submit_command" json:"submit_command"`
	QueryCommand  string `yaml:"query_command" json:"query_command"`
	CancelCommand string `yaml:"cancel_command" json:"cancel_command"`
}

// RunConfig describes the user command and the parameter space
type RunConfig struct {
	Command         string   `yaml:"command" json:"command"`
	Name            string   `yaml:"name" json:"name"` // optional name template, e.g. "{model}-lr{lr}"
	Grid            Grid     `yaml:"grid" json:"grid"`
	Experiments     []Params `yaml:"experiments" json:"experiments"`
	ContinueOnError bool     `yaml:"continue_on_error" json:"continue_on_error"`
}

// Reserved placeholder keys injected for every run. They override any
// identically named user parameter.
const (
	KeyExpName   = "exp_name"
	KeyRemoteDir = "remote_dir"
	KeyRunDir    = "run_dir"
)

// ReservedKeys lists the keys injected into every substitution mapping
var ReservedKeys = []string{KeyExpName, KeyRemoteDir, KeyRunDir}

// Remote layout below BaseDir
const (
	RunsDir = "runs"
	JobsDir = "jobs"
)

// Marker and log file names at the root of every run directory
const (
	MarkerPending  = ".pending"
	MarkerRunning  = ".running"
	MarkerFinished = ".finished"
	ExitCodeFile   = ".exitcode"
	LogFileName    = "stdout.log"
)
