package render

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/sourceplane/slurmster/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════\n"

// PlanViewer provides human-readable views of a submission plan
type PlanViewer struct {
	plan *model.Plan
}

// NewPlanViewer creates a new plan viewer
func NewPlanViewer(plan *model.Plan) *PlanViewer {
	return &PlanViewer{plan: plan}
}

// ViewTree returns one branch per run with its parameters and paths
func (pv *PlanViewer) ViewTree() string {
	if len(pv.plan.Runs) == 0 {
		return "No runs in plan"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s\n", pv.plan.Metadata.RemoteDir))

	for i, run := range pv.plan.Runs {
		isLast := i == len(pv.plan.Runs)-1

		prefix := "├─ "
		connector := "│  "
		if isLast {
			prefix = "└─ "
			connector = "   "
		}

		sb.WriteString(fmt.Sprintf("%s%s\n", prefix, run.Name))
		for _, p := range run.Params {
			sb.WriteString(fmt.Sprintf("%s  %s = %s\n", connector, p.Key, p.Value))
		}
		sb.WriteString(fmt.Sprintf("%s  run_dir: %s\n", connector, run.RunDir))

		// Truncate long commands for readability
		cmd := run.Command
		if runes := []rune(cmd); len(runes) > 60 {
			cmd = string(runes[:57]) + "..."
		}
		sb.WriteString(fmt.Sprintf("%s  | %s\n", connector, cmd))
	}

	sb.WriteString(rule)
	sb.WriteString(fmt.Sprintf("Summary: %d runs\n", len(pv.plan.Runs)))
	return sb.String()
}

// ViewRun shows one run with its full job script
func (pv *PlanViewer) ViewRun(name string) string {
	for _, run := range pv.plan.Runs {
		if run.Name != name {
			continue
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s (#%d)\n", run.Name, run.Index))
		sb.WriteString(rule)
		sb.WriteString(fmt.Sprintf("Params:  %s\n", run.Params))
		sb.WriteString(fmt.Sprintf("Run dir: %s\n", run.RunDir))
		sb.WriteString(fmt.Sprintf("Log:     %s\n", run.LogFile))
		sb.WriteString(fmt.Sprintf("Script:  %s\n", run.JobScript))
		sb.WriteString(fmt.Sprintf("Submit:  %s\n\n", run.Submit))
		sb.WriteString(run.Script)
		return sb.String()
	}
	return fmt.Sprintf("No run named %s in plan", name)
}

// PlanTable renders runs as a table
func PlanTable(plan *model.Plan) (string, error) {
	data := [][]string{{"#", "NAME", "PARAMS", "RUN DIR"}}
	for _, run := range plan.Runs {
		data = append(data, []string{fmt.Sprint(run.Index), run.Name, run.Params.String(), run.RunDir})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// RunsTable renders registry records as a table
func RunsTable(runs []model.Run) (string, error) {
	data := [][]string{{"EXP", "JOB", "STATE", "FETCHED", "SUBMITTED", "GIT"}}
	for _, r := range runs {
		submitted := ""
		if !r.SubmittedAt.IsZero() {
			submitted = r.SubmittedAt.Local().Format("2006-01-02 15:04")
		}
		data = append(data, []string{r.ExpName, r.JobID, stateCell(r), yesNo(r.Fetched), submitted, gitCell(r)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// StatusTable renders the outcome of a reconciliation pass
func StatusTable(runs []model.Run) (string, error) {
	data := [][]string{{"EXP", "JOB", "STATE"}}
	for _, r := range runs {
		data = append(data, []string{r.ExpName, r.JobID, stateCell(r)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

func stateCell(r model.Run) string {
	if r.SchedulerState != "" && r.SchedulerState != string(r.State) {
		return fmt.Sprintf("%s (%s)", r.State, r.SchedulerState)
	}
	return string(r.State)
}

func gitCell(r model.Run) string {
	if r.GitCommit == "" {
		return ""
	}
	commit := r.GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	if r.GitDirty {
		commit += "*"
	}
	return commit
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
