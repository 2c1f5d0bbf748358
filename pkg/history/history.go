// Package history records the outcome of VM runs to a small SQLite database,
// so a driver can answer "what happened the last N times this program ran"
// without the VM core tracking any of it.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/slotvm/pkg/bytecode"
)

// Store holds a SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		program_digest TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		state TEXT NOT NULL,
		error_kind TEXT,
		fault_pc INTEGER
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run describes the outcome of a single VM invocation.
type Run struct {
	ProgramDigest string
	StartedAt     time.Time
	Duration      time.Duration
	State         bytecode.State
	ErrorKind     *bytecode.ErrorKind
	FaultPC       *int
}

// Record inserts a run outcome into the history database.
func (s *Store) Record(r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errKind any
	var faultPC any
	if r.ErrorKind != nil {
		errKind = r.ErrorKind.String()
	}
	if r.FaultPC != nil {
		faultPC = *r.FaultPC
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (program_digest, started_at, duration_ms, state, error_kind, fault_pc)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ProgramDigest, r.StartedAt.Format(time.RFC3339Nano), r.Duration.Milliseconds(), r.State.String(), errKind, faultPC,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Recent returns the most recent n runs for programDigest, newest first.
func (s *Store) Recent(programDigest string, n int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT started_at, duration_ms, state, error_kind, fault_pc
		 FROM runs WHERE program_digest = ? ORDER BY id DESC LIMIT ?`,
		programDigest, n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var startedAt, state string
		var durationMS int64
		var errKind sql.NullString
		var faultPC sql.NullInt64

		if err := rows.Scan(&startedAt, &durationMS, &state, &errKind, &faultPC); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}

		started, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}

		run := Run{
			ProgramDigest: programDigest,
			StartedAt:     started,
			Duration:      time.Duration(durationMS) * time.Millisecond,
		}
		switch state {
		case "halted-ok":
			run.State = bytecode.HaltedOK
		case "halted-error":
			run.State = bytecode.HaltedError
		default:
			run.State = bytecode.Running
		}
		if errKind.Valid {
			k := parseErrorKind(errKind.String)
			run.ErrorKind = &k
		}
		if faultPC.Valid {
			pc := int(faultPC.Int64)
			run.FaultPC = &pc
		}

		out = append(out, run)
	}
	return out, rows.Err()
}

func parseErrorKind(s string) bytecode.ErrorKind {
	kinds := []bytecode.ErrorKind{
		bytecode.StackUnderflow,
		bytecode.VarIndexOutOfRange,
		bytecode.DivisionByZero,
		bytecode.JumpOutOfBounds,
		bytecode.TruncatedLiteral,
		bytecode.InputReadFailure,
		bytecode.OutputWriteFailure,
		bytecode.AllocationFailure,
	}
	for _, k := range kinds {
		if k.String() == s {
			return k
		}
	}
	return bytecode.StackUnderflow
}
