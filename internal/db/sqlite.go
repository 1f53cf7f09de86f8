package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"memory-portal/internal/models"
)

// ErrNotFound is returned when a requested record does not exist. The
// profile bootstrap path relies on it to distinguish "create one" from a
// real failure.
var ErrNotFound = errors.New("db: record not found")

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    avatar_image_url TEXT NOT NULL DEFAULT '',
    personality_traits TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    content TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS memories_user_idx ON memories(user_id, created_at);

CREATE TABLE IF NOT EXISTS turns (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    is_user INTEGER NOT NULL,
    message TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS turns_user_idx ON turns(user_id, timestamp);

CREATE TABLE IF NOT EXISTS video_jobs (
    id TEXT PRIMARY KEY,
    job_id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    source_turn_id TEXT NOT NULL,
    status TEXT NOT NULL,
    result_url TEXT NOT NULL DEFAULT '',
    attempts INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);`

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := `
        SELECT id, name, avatar_image_url, personality_traits, created_at
        FROM profiles WHERE id = ?`

	var p models.UserProfile
	err := db.db.QueryRowContext(ctx, query, userID).
		Scan(&p.ID, &p.Name, &p.AvatarImageURL, &p.PersonalityTraits, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (db *Database) ListProfiles(ctx context.Context) ([]models.UserProfile, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, name, avatar_image_url, personality_traits, created_at
        FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]models.UserProfile, 0)
	for rows.Next() {
		var p models.UserProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.AvatarImageURL, &p.PersonalityTraits, &p.CreatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (db *Database) SaveProfile(ctx context.Context, p *models.UserProfile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO profiles (id, name, avatar_image_url, personality_traits, created_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            avatar_image_url = excluded.avatar_image_url,
            personality_traits = excluded.personality_traits`,
		p.ID, p.Name, p.AvatarImageURL, p.PersonalityTraits, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (db *Database) SaveMemory(ctx context.Context, m *models.MemoryItem) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO memories (id, user_id, type, content, description, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, string(m.Type), m.Content, m.Description, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

func (db *Database) ListMemories(ctx context.Context, userID string) ([]models.MemoryItem, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, user_id, type, content, description, created_at
        FROM memories
        WHERE user_id = ?
        ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	items := make([]models.MemoryItem, 0)
	for rows.Next() {
		var m models.MemoryItem
		var typ string
		if err := rows.Scan(&m.ID, &m.UserID, &typ, &m.Content, &m.Description, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = models.MemoryType(typ)
		items = append(items, m)
	}
	return items, rows.Err()
}

func (db *Database) SaveTurn(ctx context.Context, t *models.ConversationTurn) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO turns (id, user_id, is_user, message, timestamp)
        VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.IsUser, t.Text, t.Timestamp)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// TurnHistory returns up to limit turns for the user in chronological
// order. limit <= 0 means no limit.
func (db *Database) TurnHistory(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error) {
	query := `
        SELECT id, user_id, is_user, message, timestamp
        FROM turns
        WHERE user_id = ?
        ORDER BY timestamp, id`
	args := []any{userID}
	if limit > 0 {
		// Take the most recent N, still returned oldest-first.
		query = `
        SELECT id, user_id, is_user, message, timestamp FROM (
            SELECT id, user_id, is_user, message, timestamp
            FROM turns
            WHERE user_id = ?
            ORDER BY timestamp DESC, id DESC
            LIMIT ?
        ) ORDER BY timestamp, id`
		args = append(args, limit)
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("turn history: %w", err)
	}
	defer rows.Close()

	turns := make([]models.ConversationTurn, 0)
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.ID, &t.UserID, &t.IsUser, &t.Text, &t.Timestamp); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (db *Database) SaveVideoJob(ctx context.Context, j *models.VideoJob) error {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO video_jobs (id, job_id, user_id, source_turn_id, status, result_url, attempts, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.JobID, j.UserID, j.SourceTurnID, string(j.Status), j.ResultURL, j.Attempts, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save video job: %w", err)
	}
	return nil
}

func (db *Database) MarkVideoJob(ctx context.Context, jobID string, status models.JobStatus, resultURL string, attempts int) error {
	_, err := db.db.ExecContext(ctx, `
        UPDATE video_jobs
        SET status = ?, result_url = ?, attempts = ?, updated_at = ?
        WHERE job_id = ?`,
		string(status), resultURL, attempts, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("mark video job: %w", err)
	}
	return nil
}

func (db *Database) GetVideoJob(ctx context.Context, jobID string) (*models.VideoJob, error) {
	var j models.VideoJob
	var status string
	err := db.db.QueryRowContext(ctx, `
        SELECT id, job_id, user_id, source_turn_id, status, result_url, attempts, created_at, updated_at
        FROM video_jobs WHERE job_id = ?`, jobID).
		Scan(&j.ID, &j.JobID, &j.UserID, &j.SourceTurnID, &status, &j.ResultURL, &j.Attempts, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video job: %w", err)
	}
	j.Status = models.JobStatus(status)
	return &j, nil
}
