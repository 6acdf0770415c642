package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
)

func values(sets []model.Params) [][]string {
	out := make([][]string, len(sets))
	for i, p := range sets {
		for _, kv := range p {
			out[i] = append(out[i], kv.Value)
		}
	}
	return out
}

func TestGridOrder(t *testing.T) {
	grid := model.Grid{
		{Key: "lr", Values: []string{"0.1", "0.01"}},
		{Key: "seed", Values: []string{"1", "2"}},
	}

	sets, err := Grid(grid)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"0.1", "1"}, {"0.1", "2"}, {"0.01", "1"}, {"0.01", "2"}}, values(sets))
	for _, p := range sets {
		assert.Equal(t, []string{"lr", "seed"}, p.Keys())
	}
}

func TestGridCardinality(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
	}{
		{"single key", []int{5}},
		{"two keys", []int{3, 4}},
		{"three keys", []int{2, 3, 2}},
		{"singletons", []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var grid model.Grid
			want := 1
			for k, n := range tt.sizes {
				axis := model.GridAxis{Key: string(rune('a' + k))}
				for v := 0; v < n; v++ {
					axis.Values = append(axis.Values, string(rune('0'+v)))
				}
				grid = append(grid, axis)
				want *= n
			}

			sets, err := Grid(grid)
			require.NoError(t, err)
			assert.Len(t, sets, want)

			seen := map[string]bool{}
			for _, p := range sets {
				assert.Len(t, p, len(tt.sizes), "one value per key")
				seen[p.String()] = true
			}
			assert.Len(t, seen, want, "no combination repeated or missing")
		})
	}
}

func TestGridEmptyAxis(t *testing.T) {
	_, err := Grid(model.Grid{{Key: "lr"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestExpand(t *testing.T) {
	t.Run("experiments win over grid", func(t *testing.T) {
		sets, err := Expand(model.RunConfig{
			Grid:        model.Grid{{Key: "lr", Values: []string{"1", "2"}}},
			Experiments: []model.Params{{{Key: "model", Value: "vit"}}},
		})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"vit"}}, values(sets))
	})

	t.Run("neither form", func(t *testing.T) {
		_, err := Expand(model.RunConfig{Command: "x"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})
}

func TestCandidates(t *testing.T) {
	t.Run("default names", func(t *testing.T) {
		c, err := Candidates(model.RunConfig{Grid: model.Grid{
			{Key: "lr", Values: []string{"0.1", "0.01"}},
			{Key: "seed", Values: []string{"1"}},
		}})
		require.NoError(t, err)
		require.Len(t, c, 2)
		assert.Equal(t, "lr-0.1_seed-1", c[0].Name)
		assert.Equal(t, "lr-0.01_seed-1", c[1].Name)
		assert.Equal(t, 1, c[1].Index)
	})

	t.Run("template collision fails the batch", func(t *testing.T) {
		_, err := Candidates(model.RunConfig{
			Name: "lr{lr}",
			Grid: model.Grid{
				{Key: "lr", Values: []string{"0.1"}},
				{Key: "seed", Values: []string{"1", "2"}},
			},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
		assert.Contains(t, err.Error(), "lr0.1")
	})

	t.Run("sanitising collision fails the batch", func(t *testing.T) {
		_, err := Candidates(model.RunConfig{Experiments: []model.Params{
			{{Key: "path", Value: "a/b"}},
			{{Key: "path", Value: "a b"}},
		}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})

	t.Run("template with unknown key", func(t *testing.T) {
		_, err := Candidates(model.RunConfig{
			Name: "{missing}",
			Grid: model.Grid{{Key: "lr", Values: []string{"1"}}},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTemplate))
	})
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"lr-0.1_seed-1":    "lr-0.1_seed-1",
		"model-a/b":        "model-a-b",
		"x  y":             "x-y",
		"..hidden":         "hidden",
		"--flag":           "flag",
		"name with \u00fc": "name-with",
		"":                 "",
		"ok.Name_1-2":      "ok.Name_1-2",
	}
	for in, want := range tests {
		assert.Equal(t, want, Sanitize(in), "input %q", in)
	}
}
