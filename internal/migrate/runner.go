package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

// Direction of a migration step.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Runner errors. ErrNoChange is returned when the database is already at the
// requested revision; callers usually treat it as success.
var (
	ErrNoChange        = errors.New("no change")
	ErrUnknownRevision = errors.New("database revision is not in the migration chain")
	ErrIrreversible    = errors.New("migration has no down script")
	ErrOutOfRange      = errors.New("target revision is outside the migration chain")
)

// errStale is returned by step when the marker no longer names the revision
// the step starts from.
var errStale = errors.New("schema revision changed")

// MigrationError reports the step that failed. The marker still names the
// last revision that succeeded. It matches types.ErrMigration under errors.Is
// and unwraps to the underlying cause.
type MigrationError struct {
	Revision  string
	Direction Direction
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s (%s): %v", e.Revision, e.Direction, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

func (e *MigrationError) Is(target error) bool { return target == types.ErrMigration }

// Status describes where a database sits on the chain.
type Status struct {
	Current string   `json:"current"`
	Head    string   `json:"head"`
	Applied []string `json:"applied"`
	Pending []string `json:"pending"`
}

// AtHead reports whether no migrations are pending.
func (s Status) AtHead() bool { return len(s.Pending) == 0 }

const markerDDL = `
CREATE TABLE IF NOT EXISTS schema_revision (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    revision TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Runner moves a database along a migration chain. Every step runs in its
// own transaction together with the marker update, so a failed step leaves
// both the schema and the marker where they were.
type Runner struct {
	db     *sql.DB
	chain  []Migration
	logger *zap.Logger
}

// New returns a Runner for chain. A nil logger discards output.
func New(db *sql.DB, chain []Migration, logger *zap.Logger) (*Runner, error) {
	if err := validateChain(chain); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, chain: chain, logger: logger}, nil
}

// Head returns the last revision of the chain.
func (r *Runner) Head() string {
	return r.chain[len(r.chain)-1].Revision
}

// Current returns the applied revision, empty when nothing is applied.
func (r *Runner) Current(ctx context.Context) (string, error) {
	if err := r.ensureMarker(ctx); err != nil {
		return "", err
	}
	return readMarker(ctx, r.db)
}

// Status returns the current revision and the applied and pending lists.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	current, err := r.Current(ctx)
	if err != nil {
		return Status{}, err
	}
	pos, err := r.position(current)
	if err != nil {
		return Status{}, err
	}
	st := Status{Current: current, Head: r.Head(), Applied: []string{}, Pending: []string{}}
	for i, m := range r.chain {
		if i < pos {
			st.Applied = append(st.Applied, m.Revision)
		} else {
			st.Pending = append(st.Pending, m.Revision)
		}
	}
	return st, nil
}

// Pending returns the migrations Up would apply.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	current, err := r.Current(ctx)
	if err != nil {
		return nil, err
	}
	pos, err := r.position(current)
	if err != nil {
		return nil, err
	}
	return r.chain[pos:], nil
}

// Up applies every pending migration in chain order and returns how many
// were applied.
func (r *Runner) Up(ctx context.Context) (int, error) {
	return r.migrateTo(ctx, len(r.chain))
}

// Down reverses every applied migration, newest first, down to base.
func (r *Runner) Down(ctx context.Context) (int, error) {
	return r.migrateTo(ctx, 0)
}

// Steps moves n migrations forward when n > 0 or back when n < 0.
func (r *Runner) Steps(ctx context.Context, n int) (int, error) {
	if n == 0 {
		return 0, ErrNoChange
	}
	current, err := r.Current(ctx)
	if err != nil {
		return 0, err
	}
	pos, err := r.position(current)
	if err != nil {
		return 0, err
	}
	target := pos + n
	if target < 0 || target > len(r.chain) {
		return 0, fmt.Errorf("moving %d steps from %q: %w", n, current, ErrOutOfRange)
	}
	return r.migrateTo(ctx, target)
}

// To moves the database to revision, forward or back. An empty revision is
// the base.
func (r *Runner) To(ctx context.Context, revision string) (int, error) {
	target, err := r.position(revision)
	if err != nil {
		return 0, err
	}
	return r.migrateTo(ctx, target)
}

// migrateTo moves the database until target migrations are applied.
func (r *Runner) migrateTo(ctx context.Context, target int) (int, error) {
	if err := r.ensureMarker(ctx); err != nil {
		return 0, err
	}
	current, err := readMarker(ctx, r.db)
	if err != nil {
		return 0, err
	}
	pos, err := r.position(current)
	if err != nil {
		return 0, err
	}
	if pos == target {
		return 0, ErrNoChange
	}

	moved := 0
	for pos != target {
		// At head pos == len(r.chain), so only index on the side we move to.
		var m Migration
		dir := DirectionUp
		if pos > target {
			m, dir = r.chain[pos-1], DirectionDown
			if !m.Reversible() {
				return moved, &MigrationError{Revision: m.Revision, Direction: dir, Err: ErrIrreversible}
			}
		} else {
			m = r.chain[pos]
		}
		err := r.step(ctx, m, dir)
		if errors.Is(err, errStale) {
			// Another process moved the marker while we waited for the
			// write lock; continue from wherever it left the database.
			if current, err = readMarker(ctx, r.db); err != nil {
				return moved, err
			}
			if pos, err = r.position(current); err != nil {
				return moved, err
			}
			continue
		}
		if err != nil {
			return moved, err
		}
		if dir == DirectionUp {
			pos++
		} else {
			pos--
		}
		moved++
	}
	if moved == 0 {
		return 0, ErrNoChange
	}
	return moved, nil
}

// step applies one migration on a dedicated connection with foreign keys
// off, as SQLite's table rebuild procedure requires. The foreign key check
// must come back clean before the step commits.
func (r *Runner) step(ctx context.Context, m Migration, dir Direction) error {
	from, to, script := m.Previous, m.Revision, m.Up
	if dir == DirectionDown {
		from, to, script = m.Revision, m.Previous, m.Down
	}
	start := time.Now()

	fail := func(err error) error {
		r.logger.Error("migration failed",
			zap.String("revision", m.Revision),
			zap.String("direction", string(dir)),
			zap.Error(err))
		return &MigrationError{Revision: m.Revision, Direction: dir, Err: err}
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fail(fmt.Errorf("acquiring connection: %w", err))
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fail(fmt.Errorf("disabling foreign keys: %w", err))
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); err != nil {
			r.logger.Warn("re-enabling foreign keys", zap.Error(err))
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fail(fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	current, err := readMarker(ctx, tx)
	if err != nil {
		return fail(err)
	}
	if current != from {
		r.logger.Debug("schema revision moved",
			zap.String("revision", m.Revision),
			zap.String("found", current),
			zap.String("want", from))
		return errStale
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fail(err)
	}
	problems, err := ForeignKeyProblems(ctx, tx)
	if err != nil {
		return fail(err)
	}
	if len(problems) > 0 {
		return fail(&types.IntegrityError{Problems: problems})
	}
	if err := writeMarker(ctx, tx, to); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(fmt.Errorf("committing: %w", err))
	}

	r.logger.Info("applied migration",
		zap.String("revision", m.Revision),
		zap.String("direction", string(dir)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// position returns how many migrations are applied when the marker reads
// revision.
func (r *Runner) position(revision string) (int, error) {
	if revision == "" {
		return 0, nil
	}
	for i, m := range r.chain {
		if m.Revision == revision {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownRevision, revision)
}

func (r *Runner) ensureMarker(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, markerDDL); err != nil {
		return fmt.Errorf("creating schema_revision: %w", err)
	}
	return nil
}

func readMarker(ctx context.Context, q Queryer) (string, error) {
	var revision string
	err := q.QueryRowContext(ctx, "SELECT revision FROM schema_revision WHERE id = 1").Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading schema_revision: %w", err)
	}
	return revision, nil
}

func writeMarker(ctx context.Context, q Queryer, revision string) error {
	if revision == "" {
		if _, err := q.ExecContext(ctx, "DELETE FROM schema_revision"); err != nil {
			return fmt.Errorf("clearing schema_revision: %w", err)
		}
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO schema_revision (id, revision, applied_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET revision = excluded.revision, applied_at = excluded.applied_at`,
		revision, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing schema_revision: %w", err)
	}
	return nil
}

// ForeignKeyProblems runs PRAGMA foreign_key_check and describes each
// violation as "<table> row <rowid> references missing <parent>".
func ForeignKeyProblems(ctx context.Context, q Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return nil, fmt.Errorf("checking foreign keys: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var (
			table, parent string
			rowid         sql.NullInt64
			fkid          int64
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return nil, fmt.Errorf("scanning foreign key check: %w", err)
		}
		var b strings.Builder
		b.WriteString(table)
		if rowid.Valid {
			fmt.Fprintf(&b, " row %d", rowid.Int64)
		}
		b.WriteString(" references missing ")
		b.WriteString(parent)
		problems = append(problems, b.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checking foreign keys: %w", err)
	}
	return problems, nil
}
