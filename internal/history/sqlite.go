package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares it for
// concurrent use.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for concurrent readers, busy timeout so the bounded worker
	// pool doesn't trip over write locks.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per accepted request, inserted before the completion call.
	CREATE TABLE IF NOT EXISTS chat_queues (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_server TEXT NOT NULL,
		guild_id TEXT,
		started INTEGER NOT NULL,
		asked TEXT
	);

	-- One row per answered chat.
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_server TEXT NOT NULL,
		guild_id TEXT,
		data_id TEXT,
		convo_id TEXT,
		duration INTEGER,
		asked TEXT,
		raw_response TEXT,
		response TEXT,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_queues_user_started ON chat_queues(user_id, user_server, started);
	CREATE INDEX IF NOT EXISTS idx_messages_user_started ON chat_messages(user_id, user_server, started);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountSince(ctx context.Context, userID, server string, since time.Time, table Table) (int, error) {
	var q string
	switch table {
	case TableQueues:
		q = `SELECT COUNT(*) FROM chat_queues WHERE user_id = ? AND user_server = ? AND started > ?`
	case TableMessages:
		q = `SELECT COUNT(*) FROM chat_messages WHERE user_id = ? AND user_server = ? AND started > ?`
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, q, userID, server, since.Unix()).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s rows: %w", table, err)
	}
	return n, nil
}

func (s *SQLiteStore) InsertQueue(ctx context.Context, row QueueRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_queues (id, user_id, user_server, guild_id, started, asked)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), row.UserID, row.Server, row.GuildID, row.StartedAt.Unix(), row.Asked)
	if err != nil {
		return fmt.Errorf("inserting queue row: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertMessage(ctx context.Context, row MessageRow) error {
	duration := row.FinishedAt.Unix() - row.StartedAt.Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, user_server, guild_id, data_id, convo_id, duration, asked, raw_response, response, started, finished)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), row.UserID, row.Server, row.GuildID, row.RequestID, row.ConvoID,
		duration, row.Asked, row.RawResponse, row.Response, row.StartedAt.Unix(), row.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting message row: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
