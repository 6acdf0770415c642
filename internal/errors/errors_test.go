package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryMarks(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		ref      error
		category string
	}{
		{"configuration", Configurationf("run.grid is empty"), ErrConfiguration, "ConfigurationError"},
		{"submission", Submissionf("sbatch exited %d", 1), ErrSubmission, "SubmissionError"},
		{"parse", Parsef("no job id in %q", "oops"), ErrParse, "ParseError"},
		{"lookup", Lookupf("no run named %s", "lr-0.1"), ErrLookup, "LookupError"},
		{"cancellation", Cancellationf("scancel failed"), ErrCancellation, "CancellationError"},
		{"remote io", RemoteIO(New("connection reset"), "check marker"), ErrRemoteIO, "RemoteIOError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, Is(tt.err, tt.ref))
			assert.Equal(t, tt.category, Category(tt.err))
		})
	}
}

func TestMarksSurviveWrapping(t *testing.T) {
	err := Wrap(Lookupf("no run with job id %s", "42"), "cancel")

	assert.True(t, Is(err, ErrLookup))
	assert.False(t, Is(err, ErrCancellation))
	assert.Contains(t, err.Error(), "cancel: no run with job id 42")
}

func TestRemoteIONil(t *testing.T) {
	assert.NoError(t, RemoteIO(nil, "ignored"))
	assert.NoError(t, RemoteIOf(nil, "ignored %d", 1))
}

func TestCategoryUnmarked(t *testing.T) {
	assert.Equal(t, "", Category(nil))
	assert.Equal(t, "error", Category(New("plain")))
}

func TestHintsAreKept(t *testing.T) {
	err := WithHint(Submissionf("sbatch failed"), "check the partition name")

	assert.True(t, Is(err, ErrSubmission))
	assert.Equal(t, "check the partition name", FlattenHints(err))
}
