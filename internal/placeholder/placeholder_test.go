package placeholder

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
)

func TestSubstitute(t *testing.T) {
	values := map[string]string{"lr": "0.1", "seed": "1", "run_dir": "/r/a", "model.name": "vit"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"plain", "python train.py", "python train.py"},
		{"single", "--lr {lr}", "--lr 0.1"},
		{"repeated", "{lr}-{lr}", "0.1-0.1"},
		{"adjacent", "{lr}{seed}", "0.11"},
		{"dotted name", "--model {model.name}", "--model vit"},
		{"escaped braces", "echo {{lr}} {lr}", "echo {lr} 0.1"},
		{"shell block kept", `f() { echo hi; }; f > {run_dir}/x`, `f() { echo hi; }; f > /r/a/x`},
		{"awk program kept", `awk '{print $1}' {run_dir}/log`, `awk '{print $1}' /r/a/log`},
		{"unterminated brace", "echo {lr", "echo {lr"},
		{"empty braces", "x {} y", "x {} y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Substitute(tt.template, values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubstituteMissingKey(t *testing.T) {
	_, err := Substitute("python train.py --lr {lr} --bs {batch}", map[string]string{"lr": "0.1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplate))

	var missing *MissingKeyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "batch", missing.Key)
	assert.Contains(t, err.Error(), "{batch}")
}

func TestSubstituteLeavesNoPlaceholders(t *testing.T) {
	values := map[string]string{"a": "1", "b": "x y", "c": ""}
	token := regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_.-]*\}`)

	for _, tmpl := range []string{"{a}", "{a}{b}{c}", "pre {b} mid {a} post", "{c}{c}{c}"} {
		got, err := Substitute(tmpl, values)
		require.NoError(t, err)
		assert.False(t, token.MatchString(got), "template %q left %q", tmpl, got)
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"exp_name", "lr"}, Names("{exp_name} {lr} {{seed}} {exp_name}"))
	assert.Empty(t, Names("no placeholders"))
}

func TestMappingReservedKeysWin(t *testing.T) {
	params := model.Params{{Key: "lr", Value: "0.1"}, {Key: "run_dir", Value: "mine"}}
	values, shadowed := Mapping(params, map[string]string{"run_dir": "/remote/runs/x", "exp_name": "x"})

	assert.Equal(t, "/remote/runs/x", values["run_dir"])
	assert.Equal(t, "x", values["exp_name"])
	assert.Equal(t, "0.1", values["lr"])
	assert.Equal(t, []string{"run_dir"}, shadowed)
}

func TestIsIdentifier(t *testing.T) {
	for _, ok := range []string{"lr", "_x", "model.v2", "batch-size", "layer_2"} {
		assert.True(t, IsIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "2nd_layer", "learning rate", "lr/x", "{lr}", "-x"} {
		assert.False(t, IsIdentifier(bad), bad)
	}
}
