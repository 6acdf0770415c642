package render

import (
	"regexp"
	"strings"
	"text/template"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/remote"
)

// DefaultOutputDirectives route scheduler output into the run directory.
// They are appended when a directive block sets no output file.
const DefaultOutputDirectives = "#SBATCH --output={run_dir}/slurm-%j.out\n#SBATCH --error={run_dir}/slurm-%j.err"

var outputDirective = regexp.MustCompile(`^#SBATCH\s+(--output(=|\s)|-o\s*\S)`)

// WithDefaultOutput appends DefaultOutputDirectives unless an output
// directive is already present
func WithDefaultOutput(directives string) string {
	for _, line := range strings.Split(directives, "\n") {
		if outputDirective.MatchString(strings.TrimSpace(line)) {
			return directives
		}
	}
	directives = strings.TrimRight(directives, "\n")
	if directives == "" {
		return DefaultOutputDirectives
	}
	return directives + "\n" + DefaultOutputDirectives
}

// Script holds the substituted pieces of one job script
type Script struct {
	Directives string // substituted #SBATCH block
	RemoteDir  string
	RunDir     string
	LogFile    string
	VenvDir    string // empty: no activation
	Command    string // substituted user command
}

// The skeleton never uses set -e: the bookkeeping after the command must
// run whatever the command exits with.
var jobScript = template.Must(template.New("job").Funcs(template.FuncMap{
	"q": remote.Quote,
}).Parse(`#!/bin/bash
{{.Directives}}
#SBATCH --chdir={{.RemoteDir}}

export PYTHONUNBUFFERED=1

RUN_DIR={{q .RunDir}}
LOG_FILE={{q .LogFile}}

mkdir -p "$RUN_DIR"
rm -f "$RUN_DIR/.pending"
touch "$RUN_DIR/.running"
{{if .VenvDir}}
if [ -f {{q .VenvDir}}/bin/activate ]; then
  source {{q .VenvDir}}/bin/activate
fi
{{end}}
cd {{q .RemoteDir}}

( {{.Command}} ) 2>&1 | tee -a "$LOG_FILE"
exit_code=${PIPESTATUS[0]}

echo "$exit_code" > "$RUN_DIR/.exitcode"
rm -f "$RUN_DIR/.running"
touch "$RUN_DIR/.finished"
exit "$exit_code"
`))

// JobScript renders the self-contained job script
func JobScript(s Script) (string, error) {
	if strings.TrimSpace(s.Command) == "" {
		return "", errors.Configurationf("job script needs a command")
	}
	if s.RunDir == "" || s.LogFile == "" || s.RemoteDir == "" {
		return "", errors.Configurationf("job script needs remote, run and log paths")
	}

	s.Directives = strings.TrimRight(s.Directives, "\n")

	var b strings.Builder
	if err := jobScript.Execute(&b, s); err != nil {
		return "", errors.Wrap(err, "failed to render job script")
	}
	return b.String(), nil
}
