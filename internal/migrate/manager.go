// Package migrate applies the arabia-api schema and seed scripts.
//
// Migrations are NNNN_name.up.sql / NNNN_name.down.sql pairs applied once in
// version order; each one runs in the same transaction as its history row,
// and an applied migration whose script later changes is reported instead of
// silently skipped. Seeds must be idempotent: a seed runs again whenever its
// script changes.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql
var embedded embed.FS

// Embedded returns the schema and seed files compiled into the binary.
func Embedded() fs.FS { return embedded }

var (
	// ErrNoMigrations is returned by Down when nothing has been applied.
	ErrNoMigrations = errors.New("no migrations applied")
	// ErrChecksumMismatch reports an applied migration whose script changed.
	ErrChecksumMismatch = errors.New("applied migration script was modified")
)

// Kind separates migrations from seeds in the history table.
type Kind string

const (
	KindMigration Kind = "migration"
	KindSeed      Kind = "seed"
)

const (
	defaultMigrationsDir = "sql/migrations"
	defaultSeedsDir      = "sql/seeds"
	defaultHistoryTable  = "arabia_schema_history"
)

// Entry is one script and, when applied, the time it last ran.
type Entry struct {
	Kind      Kind
	Name      string
	AppliedAt time.Time
}

// Applied reports whether the script has run.
func (e Entry) Applied() bool { return !e.AppliedAt.IsZero() }

func (e Entry) String() string {
	if !e.Applied() {
		return fmt.Sprintf("%-9s %-32s pending", e.Kind, e.Name)
	}
	return fmt.Sprintf("%-9s %-32s %s", e.Kind, e.Name, e.AppliedAt.UTC().Format(time.RFC3339))
}

// Manager runs scripts from fsys against db.
type Manager struct {
	db            *sql.DB
	fsys          fs.FS
	migrationsDir string
	seedsDir      string
	table         string
	now           func() time.Time
}

// Option configures Manager.
type Option func(*Manager)

// WithDirs sets the migration and seed directories inside the file system.
func WithDirs(migrationsDir, seedsDir string) Option {
	return func(m *Manager) {
		m.migrationsDir = migrationsDir
		m.seedsDir = seedsDir
	}
}

// WithHistoryTable overrides the bookkeeping table name.
func WithHistoryTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

// WithClock overrides the time recorded for applied scripts.
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager constructs a Manager. A nil fsys uses the embedded files.
func NewManager(db *sql.DB, fsys fs.FS, opts ...Option) *Manager {
	if fsys == nil {
		fsys = embedded
	}
	m := &Manager{
		db:            db,
		fsys:          fsys,
		migrationsDir: defaultMigrationsDir,
		seedsDir:      defaultSeedsDir,
		table:         defaultHistoryTable,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies pending migrations in version order and returns their names.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	scripts, err := loadMigrations(m.fsys, m.migrationsDir)
	if err != nil {
		return nil, err
	}
	done, err := m.prepare(ctx, KindMigration)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, s := range scripts {
		if rec, ok := done[s.name]; ok {
			if rec.checksum != s.checksum {
				return applied, fmt.Errorf("%w: %s", ErrChecksumMismatch, s.name)
			}
			continue
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if err := execScript(ctx, tx, s.up); err != nil {
				return err
			}
			return m.record(ctx, tx, KindMigration, s)
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", s.name, err)
		}
		applied = append(applied, s.name)
	}
	return applied, nil
}

// Down rolls back the highest applied migration and returns its name.
func (m *Manager) Down(ctx context.Context) (string, error) {
	scripts, err := loadMigrations(m.fsys, m.migrationsDir)
	if err != nil {
		return "", err
	}
	if err := m.ensureTable(ctx); err != nil {
		return "", err
	}
	var last string
	err = m.db.QueryRowContext(ctx,
		fmt.Sprintf(`select name from %s where kind = $1 order by name desc limit 1`, m.table),
		string(KindMigration)).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoMigrations
	}
	if err != nil {
		return "", err
	}
	idx := sort.Search(len(scripts), func(i int) bool { return scripts[i].name >= last })
	if idx == len(scripts) || scripts[idx].name != last {
		return "", fmt.Errorf("no script found for applied migration %s", last)
	}
	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if err := execScript(ctx, tx, scripts[idx].down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`delete from %s where kind = $1 and name = $2`, m.table), string(KindMigration), last)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("rollback migration %s: %w", last, err)
	}
	return last, nil
}

// Seed runs every seed that has not run or whose script changed since it
// last ran, and returns their names.
func (m *Manager) Seed(ctx context.Context) ([]string, error) {
	seeds, err := loadSeeds(m.fsys, m.seedsDir)
	if err != nil {
		return nil, err
	}
	done, err := m.prepare(ctx, KindSeed)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, s := range seeds {
		if rec, ok := done[s.name]; ok && rec.checksum == s.checksum {
			continue
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if err := execScript(ctx, tx, s.up); err != nil {
				return err
			}
			return m.record(ctx, tx, KindSeed, s)
		})
		if err != nil {
			return applied, fmt.Errorf("apply seed %s: %w", s.name, err)
		}
		applied = append(applied, s.name)
	}
	return applied, nil
}

// Status lists migrations then seeds, each marked applied or pending.
func (m *Manager) Status(ctx context.Context) ([]Entry, error) {
	migrations, err := loadMigrations(m.fsys, m.migrationsDir)
	if err != nil {
		return nil, err
	}
	seeds, err := loadSeeds(m.fsys, m.seedsDir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, group := range []struct {
		kind    Kind
		scripts []script
	}{{KindMigration, migrations}, {KindSeed, seeds}} {
		done, err := m.prepare(ctx, group.kind)
		if err != nil {
			return nil, err
		}
		for _, s := range group.scripts {
			out = append(out, Entry{Kind: group.kind, Name: s.name, AppliedAt: done[s.name].appliedAt})
		}
	}
	return out, nil
}

type record struct {
	checksum  string
	appliedAt time.Time
}

// prepare creates the history table if needed and loads rows of kind.
func (m *Manager) prepare(ctx context.Context, kind Kind) (map[string]record, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf(`select name, checksum, applied_at from %s where kind = $1`, m.table), string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]record)
	for rows.Next() {
		var name string
		var rec record
		if err := rows.Scan(&name, &rec.checksum, &rec.appliedAt); err != nil {
			return nil, err
		}
		out[name] = rec
	}
	return out, rows.Err()
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`create table if not exists %s (
		kind text not null,
		name text not null,
		checksum text not null,
		applied_at timestamptz not null,
		primary key (kind, name)
	)`, m.table))
	return err
}

func (m *Manager) record(ctx context.Context, tx *sql.Tx, kind Kind, s script) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`insert into %s (kind, name, checksum, applied_at)
		values ($1, $2, $3, $4)
		on conflict (kind, name) do update set checksum = excluded.checksum, applied_at = excluded.applied_at`, m.table),
		string(kind), s.name, s.checksum, m.now().UTC())
	return err
}

func (m *Manager) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func execScript(ctx context.Context, tx *sql.Tx, body string) error {
	for _, stmt := range splitStatements(body) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type script struct {
	name     string
	up       string
	down     string
	checksum string
}

// loadMigrations pairs up/down files by name and orders them by version.
func loadMigrations(fsys fs.FS, dir string) ([]script, error) {
	entries, err := readDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*script)
	versions := make(map[int]string)
	for _, e := range entries {
		name, isUp := strings.CutSuffix(e, ".up.sql")
		if !isUp {
			var isDown bool
			if name, isDown = strings.CutSuffix(e, ".down.sql"); !isDown {
				continue
			}
		}
		v, err := version(name)
		if err != nil {
			return nil, err
		}
		if other, ok := versions[v]; ok && other != name {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, v)
		}
		versions[v] = name
		body, err := fs.ReadFile(fsys, path.Join(dir, e))
		if err != nil {
			return nil, err
		}
		s := byName[name]
		if s == nil {
			s = &script{name: name}
			byName[name] = s
		}
		if isUp {
			s.up = string(body)
			s.checksum = checksum(body)
		} else {
			s.down = string(body)
		}
	}
	out := make([]script, 0, len(byName))
	for name, s := range byName {
		switch {
		case s.up == "":
			return nil, fmt.Errorf("migration %s has no up script", name)
		case s.down == "":
			return nil, fmt.Errorf("migration %s has no down script", name)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func loadSeeds(fsys fs.FS, dir string) ([]script, error) {
	entries, err := readDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var out []script
	for _, e := range entries {
		name, ok := strings.CutSuffix(e, ".sql")
		if !ok {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, e))
		if err != nil {
			return nil, err
		}
		out = append(out, script{name: name, up: string(body), checksum: checksum(body)})
	}
	return out, nil
}

// readDir returns sorted file names in dir; a missing dir is empty.
func readDir(fsys fs.FS, dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// version parses the numeric prefix of NNNN_name.
func version(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	v, err := strconv.Atoi(prefix)
	if !ok || err != nil || v <= 0 {
		return 0, fmt.Errorf("migration %q must be named NNNN_description", name)
	}
	return v, nil
}

func checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// splitStatements splits a script on semicolons outside quotes and drops
// line comments and empty statements.
func splitStatements(body string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			cur.WriteRune('\n')
		case r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
