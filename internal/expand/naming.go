package expand

import (
	"strings"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/placeholder"
)

// MaxNameLength bounds run names so they stay valid file and job names
const MaxNameLength = 200

// Name derives the run name of a parameter set.
//
// Without a template the name joins "key-value" tokens with "_" in parameter
// order, e.g. lr-0.1_seed-1. A template such as "{model}-lr{lr}" is filled
// from the parameters instead. Either way the result is sanitised to
// [A-Za-z0-9._-].
func Name(params model.Params, template string) (string, error) {
	var raw string
	if template != "" {
		filled, err := placeholder.Substitute(template, params.Map())
		if err != nil {
			return "", errors.Wrap(err, "run.name")
		}
		raw = filled
	} else {
		tokens := make([]string, len(params))
		for i, p := range params {
			tokens[i] = p.Key + "-" + p.Value
		}
		raw = strings.Join(tokens, "_")
	}

	name := Sanitize(raw)
	if name == "" {
		return "", errors.Configurationf("parameters %q produce an empty run name", params.String())
	}
	return name, nil
}

// Sanitize maps s onto [A-Za-z0-9._-]. Other runs of characters become a
// single "-"; leading dots and dashes are dropped so names are never hidden
// files or flags.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastDash := false
	for _, r := range s {
		if isNameRune(r) {
			b.WriteRune(r)
			lastDash = r == '-'
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	name := strings.TrimLeft(b.String(), ".-")
	name = strings.TrimRight(name, "-")
	if len(name) > MaxNameLength {
		name = strings.TrimRight(name[:MaxNameLength], "-")
	}
	return name
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}
