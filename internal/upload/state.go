package upload

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// StateDB is the local ledger of moveframes already accepted by the server,
// so re-running a plan skips them without a round trip.
type StateDB struct {
	db *sql.DB
}

// Submission is one ledger row.
type Submission struct {
	Key         string
	MoveframeID uuid.UUID
	Letter      string
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS submitted_moveframes (
		key          TEXT PRIMARY KEY,
		moveframe_id TEXT NOT NULL,
		letter       TEXT NOT NULL,
		submitted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsSubmitted checks if a moveframe key has already been accepted.
func (s *StateDB) IsSubmitted(key string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM submitted_moveframes WHERE key = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkSubmitted records that a moveframe was created (or replayed) by the server.
func (s *StateDB) MarkSubmitted(key string, moveframeID uuid.UUID, letter string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO submitted_moveframes (key, moveframe_id, letter) VALUES (?, ?, ?)`,
		key, moveframeID.String(), letter,
	)
	return err
}

// Lookup returns the ledger row for key, or nil when it was never submitted.
func (s *StateDB) Lookup(key string) (*Submission, error) {
	var sub Submission
	var id string
	err := s.db.QueryRow(
		`SELECT key, moveframe_id, letter FROM submitted_moveframes WHERE key = ?`, key,
	).Scan(&sub.Key, &id, &sub.Letter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if sub.MoveframeID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing moveframe id %q: %w", id, err)
	}
	return &sub, nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}
