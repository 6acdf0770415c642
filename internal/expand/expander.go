package expand

import (
	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
)

// Candidate is one concrete parameter set with its run name
type Candidate struct {
	Index  int
	Name   string
	Params model.Params
}

// Expand produces the ordered parameter sets of a run section.
//
// An explicit experiments list wins over a grid. A grid expands to its
// cartesian product in key order with the last key varying fastest:
//
//	{lr: [0.1, 0.01], seed: [1, 2]} -> (0.1,1) (0.1,2) (0.01,1) (0.01,2)
func Expand(run model.RunConfig) ([]model.Params, error) {
	if len(run.Experiments) > 0 {
		out := make([]model.Params, len(run.Experiments))
		for i, p := range run.Experiments {
			out[i] = append(model.Params(nil), p...)
		}
		return out, nil
	}

	if len(run.Grid) == 0 {
		return nil, errors.Configurationf("run.grid or run.experiments is required")
	}
	return Grid(run.Grid)
}

// Grid returns the cartesian product of grid, last key fastest
func Grid(grid model.Grid) ([]model.Params, error) {
	for _, axis := range grid {
		if len(axis.Values) == 0 {
			return nil, errors.Configurationf("grid key %q has no values", axis.Key)
		}
	}

	total := grid.Size()
	out := make([]model.Params, 0, total)

	// Odometer over value indices
	idx := make([]int, len(grid))
	for n := 0; n < total; n++ {
		params := make(model.Params, len(grid))
		for k, axis := range grid {
			params[k] = model.Param{Key: axis.Key, Value: axis.Values[idx[k]]}
		}
		out = append(out, params)

		for k := len(grid) - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < len(grid[k].Values) {
				break
			}
			idx[k] = 0
		}
	}

	return out, nil
}

// Candidates expands a run section and names every parameter set.
// Two sets sharing a name fail the whole batch.
func Candidates(run model.RunConfig) ([]Candidate, error) {
	sets, err := Expand(run)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(sets))
	for i, params := range sets {
		name, err := Name(params, run.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "run #%d (%s)", i, params)
		}
		candidates[i] = Candidate{Index: i, Name: name, Params: params}
	}

	if err := CheckUnique(candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// CheckUnique fails when two candidates share a name
func CheckUnique(candidates []Candidate) error {
	first := make(map[string]int, len(candidates))
	for _, c := range candidates {
		if prev, ok := first[c.Name]; ok {
			return errors.WithHint(
				errors.Configurationf("run name %q is produced by both run #%d (%s) and run #%d (%s)",
					c.Name, prev, candidates[prev].Params, c.Index, c.Params),
				"set run.name to a template that includes every varying parameter",
			)
		}
		first[c.Name] = c.Index
	}
	return nil
}
