package scheduler

import (
	"strings"

	"github.com/sourceplane/slurmster/internal/model"
)

// Slurm job state tokens, long and compact forms
var stateGroups = map[model.State][]string{
	model.StatePending: {
		"PENDING", "PD", "CONFIGURING", "CF", "REQUEUED", "RQ", "REQUEUE_FED", "RF",
		"REQUEUE_HOLD", "RH", "RESV_DEL_HOLD", "RD", "SUSPENDED", "S",
	},
	model.StateRunning: {
		"RUNNING", "R", "COMPLETING", "CG", "RESIZING", "RS", "STAGE_OUT", "SO",
		"SIGNALING", "SI", "STOPPED", "ST",
	},
	model.StateFinished: {
		"COMPLETED", "CD", "FAILED", "F", "TIMEOUT", "TO", "OUT_OF_MEMORY", "OOM",
		"NODE_FAIL", "NF", "BOOT_FAIL", "BF", "DEADLINE", "DL", "PREEMPTED", "PR",
		"REVOKED", "RV", "SPECIAL_EXIT", "SE",
	},
	model.StateCancelled: {"CANCELLED", "CA"},
}

var stateTokens = func() map[string]model.State {
	m := make(map[string]model.State)
	for state, tokens := range stateGroups {
		for _, tok := range tokens {
			m[tok] = state
		}
	}
	return m
}()

// Token extracts the state token from query output: the first word of the
// first non-empty line, upper-cased, with trailing "+" dropped
// ("CANCELLED+", "CANCELLED by 1000"). Empty output yields "".
func Token(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		return strings.TrimRight(strings.ToUpper(fields[0]), "+")
	}
	return ""
}

// MapState maps a state token onto the run lifecycle. Unrecognised
// tokens map to UNKNOWN.
func MapState(token string) model.State {
	if st, ok := stateTokens[normalizeToken(token)]; ok {
		return st
	}
	return model.StateUnknown
}

// Recognised reports whether token is part of the known scheduler vocabulary
func Recognised(token string) bool {
	_, ok := stateTokens[normalizeToken(token)]
	return ok
}

func normalizeToken(token string) string {
	return strings.TrimRight(strings.ToUpper(token), "+")
}
