package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	text TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS notes_session_idx ON notes (session_id, id);
`

// Note is one entry in the conversation memory log.
type Note struct {
	ID        int64
	SessionID uuid.UUID
	Role      string
	Text      string
	Category  string
	CreatedAt time.Time
}

// Log is a sqlite-backed append-only note log. Writers treat it as
// best-effort: the swarm logs failures and moves on.
type Log struct {
	db *sql.DB
}

// Open opens or creates the log database at path and ensures the schema.
// Use ":memory:" for an ephemeral log.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening memory log: %w", err)
	}

	// modernc sqlite serializes writes itself, a second writer conn
	// would only contend.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating memory schema: %w", err)
	}

	return &Log{db: db}, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) Append(ctx context.Context, note Note) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO notes (session_id, role, text, category) VALUES (?, ?, ?, ?)`,
		note.SessionID.String(), note.Role, note.Text, note.Category)
	if err != nil {
		return fmt.Errorf("appending note: %w", err)
	}
	return nil
}

// Recent returns the n newest notes for the session, oldest first.
func (l *Log) Recent(ctx context.Context, sessionID uuid.UUID, n int) ([]Note, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, session_id, role, text, category, created_at
		 FROM notes WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID.String(), n)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var note Note
		var sid string
		if err := rows.Scan(&note.ID, &sid, &note.Role, &note.Text, &note.Category, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		note.SessionID, err = uuid.Parse(sid)
		if err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}
	return notes, nil
}

// Query runs an arbitrary read query and returns generic rows. It backs the
// research agent's store access.
func (l *Log) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[column] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
