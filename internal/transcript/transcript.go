// Package transcript records evaluated increments in a SQLite database so
// sessions can be listed and replayed later.
package transcript

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	session    TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	source     TEXT    NOT NULL,
	result     TEXT    NOT NULL,
	error      TEXT    NOT NULL,
	output     TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session, seq)
)`

// Entry is one evaluated increment.
type Entry struct {
	Session string
	Seq     int
	Source  string
	// Result is the rendered value; empty when the increment failed.
	Result string
	Error  string
	Output []string
	Time   time.Time
}

// Summary describes a recorded session.
type Summary struct {
	Session string
	Entries int
	Started time.Time
	Updated time.Time
}

// Store is a transcript database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open transcript")
	}
	// a single connection keeps ":memory:" databases shared and serialises
	// writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create transcript schema in %s", path)
	}
	return &Store{db: db, logger: logger.Named("transcript")}, nil
}

// NewSession returns a fresh session id.
func NewSession() string {
	return uuid.NewString()
}

// Record appends e to its session. Seq is assigned when zero and Time when
// unset. The stored entry is returned.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Session == "" {
		return Entry{}, errors.New("entry has no session")
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if e.Seq == 0 {
		row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE session = ?`, e.Session)
		if err := row.Scan(&e.Seq); err != nil {
			return Entry{}, errors.Wrap(err, "next sequence")
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (session, seq, source, result, error, output, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Session, e.Seq, e.Source, e.Result, e.Error, strings.Join(e.Output, "\n"), e.Time.UnixNano())
	if err != nil {
		return Entry{}, errors.Wrapf(err, "insert %s/%d", e.Session, e.Seq)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, errors.Wrap(err, "commit")
	}
	s.logger.Debug("recorded", zap.String("session", e.Session), zap.Int("seq", e.Seq))
	return e, nil
}

// Session returns the entries of one session in order.
func (s *Store) Session(ctx context.Context, id string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session, seq, source, result, error, output, created_at FROM entries WHERE session = ? ORDER BY seq`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query session")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			output string
			nanos  int64
		)
		if err := rows.Scan(&e.Session, &e.Seq, &e.Source, &e.Result, &e.Error, &output, &nanos); err != nil {
			return nil, errors.Wrap(err, "scan entry")
		}
		if output != "" {
			e.Output = strings.Split(output, "\n")
		}
		e.Time = time.Unix(0, nanos)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("session %s not found", id)
	}
	return out, nil
}

// Sessions lists every recorded session, most recently updated first.
func (s *Store) Sessions(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session, COUNT(*), MIN(created_at), MAX(created_at) FROM entries GROUP BY session ORDER BY MAX(created_at) DESC, session`)
	if err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum            Summary
			first, updated int64
		)
		if err := rows.Scan(&sum.Session, &sum.Entries, &first, &updated); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		sum.Started = time.Unix(0, first)
		sum.Updated = time.Unix(0, updated)
		out = append(out, sum)
	}
	return out, errors.WithStack(rows.Err())
}

// Close closes the database.
func (s *Store) Close() error {
	return errors.WithStack(s.db.Close())
}
