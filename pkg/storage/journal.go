package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Journal wraps an embedded SQLite database recording every posted confession
// and reply. It backs the stats view and makes gaps in displayed numbers
// (counter reserved, post failed) observable after the fact.
// It uses modernc.org/sqlite for CGO-less builds.
type Journal struct {
	dbPath string
	db     *sql.DB
}

// NewJournal creates a Journal pointing to dbPath. Call Init() before using it.
func NewJournal(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

// Init opens the SQLite database, configures pragmas, and ensures the schema exists.
func (j *Journal) Init() error {
	if j.db != nil {
		return nil
	}
	if j.dbPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(j.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", j.dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	// Pragmas for durability and concurrency
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA synchronous=NORMAL;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return err
	}

	j.db = db
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS confessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    guild_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    posted_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_confessions_guild ON confessions(guild_id, number);

CREATE TABLE IF NOT EXISTS replies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    guild_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    confession_message_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    posted_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_replies_target ON replies(confession_message_id);
`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ConfessionRecord is one journaled confession post.
type ConfessionRecord struct {
	GuildID   string
	ChannelID string
	MessageID string
	Number    int
	PostedAt  time.Time
}

// InsertConfession records a posted confession. Number may be 0 when the
// counter reservation failed and a placeholder was displayed.
func (j *Journal) InsertConfession(rec ConfessionRecord) error {
	if j.db == nil {
		return fmt.Errorf("journal not initialized")
	}
	_, err := j.db.Exec(
		`INSERT INTO confessions (guild_id, channel_id, message_id, number, posted_at)
         VALUES (?, ?, ?, ?, ?)`,
		rec.GuildID, rec.ChannelID, rec.MessageID, rec.Number, rec.PostedAt.UTC(),
	)
	return err
}

// InsertReply records a posted anonymous reply to a confession.
func (j *Journal) InsertReply(guildID, channelID, confessionMessageID string, number int, postedAt time.Time) error {
	if j.db == nil {
		return fmt.Errorf("journal not initialized")
	}
	_, err := j.db.Exec(
		`INSERT INTO replies (guild_id, channel_id, confession_message_id, number, posted_at)
         VALUES (?, ?, ?, ?, ?)`,
		guildID, channelID, confessionMessageID, number, postedAt.UTC(),
	)
	return err
}

// CountConfessions returns the number of journaled confessions for a guild.
func (j *Journal) CountConfessions(guildID string) (int, error) {
	if j.db == nil {
		return 0, fmt.Errorf("journal not initialized")
	}
	var n int
	err := j.db.QueryRow(`SELECT COUNT(*) FROM confessions WHERE guild_id=?`, guildID).Scan(&n)
	return n, err
}

// LatestNumber returns the highest journaled confession number for a guild,
// or 0 when none exist.
func (j *Journal) LatestNumber(guildID string) (int, error) {
	if j.db == nil {
		return 0, fmt.Errorf("journal not initialized")
	}
	var n sql.NullInt64
	err := j.db.QueryRow(`SELECT MAX(number) FROM confessions WHERE guild_id=?`, guildID).Scan(&n)
	if err != nil {
		return 0, err
	}
	if !n.Valid {
		return 0, nil
	}
	return int(n.Int64), nil
}

// MissingNumbers returns journal gaps up to the latest number: reserved
// counter values that never produced a journaled post.
func (j *Journal) MissingNumbers(guildID string) ([]int, error) {
	if j.db == nil {
		return nil, fmt.Errorf("journal not initialized")
	}
	latest, err := j.LatestNumber(guildID)
	if err != nil || latest == 0 {
		return nil, err
	}

	rows, err := j.db.Query(`SELECT number FROM confessions WHERE guild_id=? AND number > 0`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[int]bool, latest)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		seen[n] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int
	for n := 1; n < latest; n++ {
		if !seen[n] {
			missing = append(missing, n)
		}
	}
	return missing, nil
}
