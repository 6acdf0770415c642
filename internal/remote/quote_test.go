package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/scratch/exp/runs/lr-0.1", "/scratch/exp/runs/lr-0.1"},
		{"a b", "'a b'"},
		{"~", "~"},
		{"~/", "~/"},
		{"~/experiments/runs/x", "~/experiments/runs/x"},
		{"~/my exp/x", "~/'my exp/x'"},
		{"it's", `it\'s`},
		{"$HOME", `\$HOME`},
		{"", "''"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), "input %q", tt.in)
	}
}

func TestQuoteAll(t *testing.T) {
	assert.Equal(t, "mkdir -p '/a b'", "mkdir -p "+QuoteAll("/a b"))
	assert.Equal(t, "x 'y z'", QuoteAll("x", "y z"))
}

func TestTailCommand(t *testing.T) {
	assert.Equal(t,
		"tail -n 50 -F /r/stdout.log 2>/dev/null & T=$!; cat >/dev/null; kill $T 2>/dev/null",
		TailCommand("/r/stdout.log", false, 50))
	assert.Contains(t, TailCommand("/r/stdout.log", true, 50), "tail -n +1 -F")
	assert.Contains(t, TailCommand("/r/stdout.log", false, -3), "tail -n 0 -F")
}

func TestResultCombined(t *testing.T) {
	assert.Equal(t, "out\nerr", Result{Stdout: "out\n", Stderr: "err\n"}.Combined())
	assert.Equal(t, "err", Result{Stderr: "err"}.Combined())
	assert.Equal(t, "out", Result{Stdout: "out"}.Combined())
	assert.True(t, Result{}.OK())
	assert.False(t, Result{ExitCode: 1}.OK())
}
