package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	log := zaptest.NewLogger(t).Sugar()
	require.NoError(t, Migrate(db, log))

	var versions int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 3, versions)

	// provenance columns exist
	_, err = db.Exec(`INSERT INTO runs (job_id, exp_name, run_dir, log_file, submitted_at, updated_at, git_commit, scheduler_state)
		VALUES ('1', 'a', '/r', '/r/log', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, 'abc', 'PENDING')`)
	require.NoError(t, err)

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, Migrate(db, log))
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
		assert.Equal(t, 3, versions)
	})
}
