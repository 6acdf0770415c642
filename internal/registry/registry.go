// Package registry is the local durable record of submitted runs.
//
// A registry is scoped to one (user, host, remote_dir) triple and stored as
// a SQLite file under the state directory. It is created lazily on the first
// write, loaded fully into memory on open and written through on every
// change. Records are never deleted.
package registry

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/slurmster/internal/db"
	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
)

// File and directory names inside a scope directory
const (
	DBFileName     = "registry.db"
	ResultsDirName = "results"
)

// Scope identifies one registry
type Scope struct {
	User      string
	Host      string
	RemoteDir string
}

// Validate checks every part is set
func (s Scope) Validate() error {
	if s.User == "" || s.Host == "" || s.RemoteDir == "" {
		return errors.Configurationf("registry scope needs user, host and remote dir (got %q, %q, %q)", s.User, s.Host, s.RemoteDir)
	}
	return nil
}

// Dir returns the scope directory below stateDir:
// <stateDir>/<user@host>/<first 12 hex of sha256(remote_dir)>
func (s Scope) Dir(stateDir string) string {
	sum := sha256.Sum256([]byte(s.RemoteDir))
	return filepath.Join(stateDir, sanitize(s.User+"@"+s.Host), hex.EncodeToString(sum[:])[:12])
}

func (s Scope) String() string {
	return s.User + "@" + s.Host + ":" + s.RemoteDir
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == 0 {
			return '_'
		}
		return r
	}, s)
}

// Registry holds the runs of one scope
type Registry struct {
	scope  Scope
	dir    string
	logger *zap.SugaredLogger
	now    func() time.Time

	mu    sync.Mutex
	db    *sql.DB
	runs  []model.Run
	index map[string]int // job id -> position in runs
}

// Open loads the registry of scope from stateDir. A missing database is
// not an error: the registry starts empty and the file is created on the
// first write.
func Open(stateDir string, scope Scope, log *zap.SugaredLogger) (*Registry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	r := newRegistry(scope, scope.Dir(stateDir), log)

	if _, err := os.Stat(r.Path()); err == nil {
		if err := r.connect(); err != nil {
			return nil, err
		}
		if err := r.load(); err != nil {
			r.Close()
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to stat %s", r.Path())
	}

	r.logger.Debugw("Registry opened",
		logger.FieldPath, r.Path(),
		logger.FieldCount, len(r.runs))
	return r, nil
}

// NewWithDB wraps an already migrated database; used by tests
func NewWithDB(conn *sql.DB, scope Scope, dir string, log *zap.SugaredLogger) (*Registry, error) {
	r := newRegistry(scope, dir, log)
	r.db = conn
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func newRegistry(scope Scope, dir string, log *zap.SugaredLogger) *Registry {
	return &Registry{
		scope:  scope,
		dir:    dir,
		logger: logger.OrNop(log),
		now:    time.Now,
		index:  make(map[string]int),
	}
}

// Scope returns the registry scope
func (r *Registry) Scope() Scope { return r.scope }

// Dir returns the scope directory
func (r *Registry) Dir() string { return r.dir }

// Path returns the database file
func (r *Registry) Path() string { return filepath.Join(r.dir, DBFileName) }

// ResultsDir is where fetched run directories land
func (r *Registry) ResultsDir() string { return filepath.Join(r.dir, ResultsDirName) }

// Close releases the database
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// connect opens and migrates the database, then claims or checks the scope row
func (r *Registry) connect() error {
	conn, err := db.Open(r.Path(), r.logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn, r.logger); err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to migrate registry")
	}

	var user, host, remoteDir string
	err = conn.QueryRow("SELECT user, host, remote_dir FROM scope WHERE id = 1").Scan(&user, &host, &remoteDir)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := conn.Exec("INSERT INTO scope (id, user, host, remote_dir) VALUES (1, ?, ?, ?)",
			r.scope.User, r.scope.Host, r.scope.RemoteDir); err != nil {
			conn.Close()
			return errors.Wrap(err, "failed to record registry scope")
		}
	case err != nil:
		conn.Close()
		return errors.Wrap(err, "failed to read registry scope")
	case user != r.scope.User || host != r.scope.Host || remoteDir != r.scope.RemoteDir:
		conn.Close()
		return errors.Configurationf("registry %s belongs to %s@%s:%s, not %s", r.Path(), user, host, remoteDir, r.scope)
	}

	r.db = conn
	return nil
}

func (r *Registry) ensureDB() error {
	if r.db != nil {
		return nil
	}
	return r.connect()
}

const selectRuns = `SELECT job_id, exp_name, params, run_dir, log_file, fetched, state,
	scheduler_state, git_commit, git_branch, git_dirty, submitted_at, updated_at
	FROM runs ORDER BY rowid`

func (r *Registry) load() error {
	rows, err := r.db.Query(selectRuns)
	if err != nil {
		return errors.Wrap(err, "failed to load runs")
	}
	defer rows.Close()

	var runs []model.Run
	index := make(map[string]int)
	for rows.Next() {
		var run model.Run
		var params, state, submitted, updated string
		if err := rows.Scan(&run.JobID, &run.ExpName, &params, &run.RunDir, &run.LogFile, &run.Fetched, &state,
			&run.SchedulerState, &run.GitCommit, &run.GitBranch, &run.GitDirty, &submitted, &updated); err != nil {
			return errors.Wrap(err, "failed to scan run")
		}
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return errors.Wrapf(err, "job %s: bad params", run.JobID)
		}
		run.State = model.ParseState(state)
		run.SubmittedAt = parseTime(submitted)
		run.UpdatedAt = parseTime(updated)

		index[run.JobID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "failed to load runs")
	}

	r.runs = runs
	r.index = index
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Runs returns every record in submission order
func (r *Registry) Runs() []model.Run {
	return r.Filter(func(model.Run) bool { return true })
}

// Unfetched returns records not yet fetched
func (r *Registry) Unfetched() []model.Run {
	return r.Filter(func(run model.Run) bool { return !run.Fetched })
}

// Filter returns copies of the records keep accepts
func (r *Registry) Filter(keep func(model.Run) bool) []model.Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Run
	for _, run := range r.runs {
		if keep(run) {
			out = append(out, run.Clone())
		}
	}
	return out
}

// Get returns the record of jobID
func (r *Registry) Get(jobID string) (model.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[jobID]
	if !ok {
		return model.Run{}, false
	}
	return r.runs[i].Clone(), true
}

// Find returns the single record matching sel. No match or several
// matches is an errors.ErrLookup.
func (r *Registry) Find(sel model.Selector) (model.Run, error) {
	if sel.Empty() {
		return model.Run{}, errors.Lookupf("no experiment name or job id given")
	}

	matches := r.Filter(sel.Matches)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Run{}, errors.WithHint(
			errors.Lookupf("no run matches %s in %s", sel, r.scope),
			"list recorded runs with `slurmster runs`",
		)
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.JobID
	}
	return model.Run{}, errors.WithHintf(
		errors.Lookupf("%d runs match %s (jobs %s)", len(matches), sel, strings.Join(ids, ", ")),
		"select one with --job %s", ids[len(ids)-1],
	)
}

// Add records a newly submitted run. A job id already recorded is rejected.
func (r *Registry) Add(run model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.JobID == "" {
		return errors.Newf("run %s has no job id", run.ExpName)
	}
	if _, ok := r.index[run.JobID]; ok {
		return errors.Newf("job %s is already recorded", run.JobID)
	}

	now := r.now()
	if run.SubmittedAt.IsZero() {
		run.SubmittedAt = now
	}
	run.UpdatedAt = now
	if run.State == "" {
		run.State = model.StatePending
	}
	if run.Params == nil {
		run.Params = model.Params{}
	}

	if err := r.ensureDB(); err != nil {
		return err
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return errors.Wrap(err, "failed to encode params")
	}

	_, err = r.db.Exec(`INSERT INTO runs (job_id, exp_name, params, run_dir, log_file, fetched, state,
		scheduler_state, git_commit, git_branch, git_dirty, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobID, run.ExpName, string(params), run.RunDir, run.LogFile, run.Fetched, string(run.State),
		run.SchedulerState, run.GitCommit, run.GitBranch, run.GitDirty,
		formatTime(run.SubmittedAt), formatTime(run.UpdatedAt))
	if err != nil {
		return errors.Wrapf(err, "failed to record job %s", run.JobID)
	}

	r.index[run.JobID] = len(r.runs)
	r.runs = append(r.runs, run.Clone())

	r.logger.Debugw("Run recorded",
		logger.FieldJobID, run.JobID,
		logger.FieldExpName, run.ExpName)
	return nil
}

// Update applies mutate to the record of jobID and persists it. The
// in-memory record changes only once the write succeeded. Only fetched,
// state and scheduler_state are mutable; the rest is fixed by Add.
func (r *Registry) Update(jobID string, mutate func(*model.Run)) (model.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[jobID]
	if !ok {
		return model.Run{}, errors.Lookupf("job %s is not recorded in %s", jobID, r.scope)
	}

	current := r.runs[i]
	updated := current.Clone()
	mutate(&updated)
	fixed := current.Clone()
	fixed.Fetched, fixed.State, fixed.SchedulerState = updated.Fetched, updated.State, updated.SchedulerState
	fixed.UpdatedAt = r.now()
	updated = fixed

	if err := r.ensureDB(); err != nil {
		return model.Run{}, err
	}

	_, err := r.db.Exec(`UPDATE runs SET fetched = ?, state = ?, scheduler_state = ?, updated_at = ?
		WHERE job_id = ?`,
		updated.Fetched, string(updated.State), updated.SchedulerState, formatTime(updated.UpdatedAt), jobID)
	if err != nil {
		return model.Run{}, errors.Wrapf(err, "failed to update job %s", jobID)
	}

	r.runs[i] = updated
	r.logger.Debugw("Run updated",
		logger.FieldJobID, jobID,
		logger.FieldState, updated.State,
		"fetched", updated.Fetched)
	return updated.Clone(), nil
}

// FetchDestination returns the local directory a run is fetched into:
// results/<exp_name>, or results/<exp_name>-<job_id> for every record
// after the first that shares the name.
func (r *Registry) FetchDestination(run model.Run) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.runs {
		if other.ExpName != run.ExpName {
			continue
		}
		if other.JobID == run.JobID {
			break
		}
		return filepath.Join(r.ResultsDir(), run.ExpName+"-"+run.JobID)
	}
	return filepath.Join(r.ResultsDir(), run.ExpName)
}
