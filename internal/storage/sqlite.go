package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	"shotboard/internal/catalog"
)

// SQLiteStorage is the source of truth for tags and playlists.
type SQLiteStorage struct {
	db        *sql.DB
	tags      *TagRepository
	playlists *PlaylistRepository
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s.tags = &TagRepository{db: db}
	s.playlists = &PlaylistRepository{db: db}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tags (
		shot_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (shot_id, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);

	CREATE TABLE IF NOT EXISTS playlists (
		name TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS playlist_shots (
		playlist TEXT NOT NULL REFERENCES playlists(name) ON DELETE CASCADE ON UPDATE CASCADE,
		shot_id TEXT NOT NULL,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (playlist, shot_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Tags() *TagRepository { return s.tags }

func (s *SQLiteStorage) Playlists() *PlaylistRepository { return s.playlists }

// Stats counts rows for the health endpoint.
func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT shot_id) FROM tags),
			(SELECT COUNT(DISTINCT tag) FROM tags),
			(SELECT COUNT(*) FROM playlists)
	`).Scan(&st.TaggedShots, &st.Tags, &st.Playlists)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// TagRepository implements catalog.TagRemote on top of the tags table.
type TagRepository struct {
	db *sql.DB
}

func (r *TagRepository) FetchAll(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT shot_id, tag FROM tags ORDER BY shot_id, tag")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		out[id] = append(out[id], tag)
	}
	return out, rows.Err()
}

func (r *TagRepository) ShotTags(ctx context.Context, shotID string) ([]string, error) {
	return queryStrings(ctx, r.db, "SELECT tag FROM tags WHERE shot_id = ? ORDER BY tag", shotID)
}

func (r *TagRepository) Add(ctx context.Context, shotID, tag string) ([]string, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tags (shot_id, tag, created_at) VALUES (?, ?, ?)
		ON CONFLICT(shot_id, tag) DO NOTHING
	`, shotID, tag, time.Now())
	if err != nil {
		return nil, err
	}
	return r.ShotTags(ctx, shotID)
}

func (r *TagRepository) Remove(ctx context.Context, shotID, tag string) ([]string, error) {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM tags WHERE shot_id = ? AND tag = ?", shotID, tag); err != nil {
		return nil, err
	}
	return r.ShotTags(ctx, shotID)
}

// RenameGlobally renames oldTag (any casing) on every shot. Shots that
// already carry newTag in any casing only lose oldTag.
func (r *TagRepository) RenameGlobally(ctx context.Context, oldTag, newTag string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT shot_id, tag FROM tags ORDER BY shot_id")
	if err != nil {
		return err
	}
	byShot := make(map[string][]string)
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			rows.Close()
			return err
		}
		byShot[id] = append(byShot[id], tag)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for id, tags := range byShot {
		var old string
		hasNew := false
		for _, tag := range tags {
			switch {
			case strings.EqualFold(tag, oldTag):
				old = tag
			case strings.EqualFold(tag, newTag):
				hasNew = true
			}
		}
		if old == "" {
			continue
		}

		if hasNew {
			_, err = tx.ExecContext(ctx, "DELETE FROM tags WHERE shot_id = ? AND tag = ?", id, old)
		} else {
			_, err = tx.ExecContext(ctx, "UPDATE tags SET tag = ? WHERE shot_id = ? AND tag = ?", newTag, id, old)
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// PlaylistRepository implements catalog.PlaylistRemote.
type PlaylistRepository struct {
	db *sql.DB
}

func (r *PlaylistRepository) FetchAll(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name, ps.shot_id
		FROM playlists p
		LEFT JOIN playlist_shots ps ON ps.playlist = p.name
		ORDER BY p.name, ps.shot_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var name string
		var shotID sql.NullString
		if err := rows.Scan(&name, &shotID); err != nil {
			return nil, err
		}
		if _, ok := out[name]; !ok {
			out[name] = []string{}
		}
		if shotID.Valid {
			out[name] = append(out[name], shotID.String)
		}
	}
	return out, rows.Err()
}

func (r *PlaylistRepository) Get(ctx context.Context, name string) (catalog.Playlist, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM playlists WHERE name = ?", name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Playlist{}, fmt.Errorf("playlist %q: %w", name, catalog.ErrNotFound)
	}
	if err != nil {
		return catalog.Playlist{}, err
	}

	ids, err := queryStrings(ctx, r.db, "SELECT shot_id FROM playlist_shots WHERE playlist = ? ORDER BY shot_id", name)
	if err != nil {
		return catalog.Playlist{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return catalog.Playlist{Name: name, ShotIDs: ids}, nil
}

func (r *PlaylistRepository) Create(ctx context.Context, name string) (catalog.Playlist, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO playlists (name, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, time.Now(), time.Now())
	if err != nil {
		return catalog.Playlist{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Playlist{}, fmt.Errorf("%w: %q", catalog.ErrDuplicateName, name)
	}
	return catalog.Playlist{Name: name, ShotIDs: []string{}}, nil
}

func (r *PlaylistRepository) Rename(ctx context.Context, name, newName string) (catalog.Playlist, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Playlist{}, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM playlists WHERE name = ?", newName).Scan(&exists)
	if err == nil {
		return catalog.Playlist{}, fmt.Errorf("%w: %q", catalog.ErrDuplicateName, newName)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return catalog.Playlist{}, err
	}

	res, err := tx.ExecContext(ctx, "UPDATE playlists SET name = ?, updated_at = ? WHERE name = ?", newName, time.Now(), name)
	if err != nil {
		return catalog.Playlist{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Playlist{}, fmt.Errorf("playlist %q: %w", name, catalog.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE playlist_shots SET playlist = ? WHERE playlist = ?", newName, name); err != nil {
		return catalog.Playlist{}, err
	}

	if err := tx.Commit(); err != nil {
		return catalog.Playlist{}, err
	}
	return r.Get(ctx, newName)
}

func (r *PlaylistRepository) Delete(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_shots WHERE playlist = ?", name); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM playlists WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("playlist %q: %w", name, catalog.ErrNotFound)
	}
	return tx.Commit()
}

func (r *PlaylistRepository) AddShot(ctx context.Context, name, shotID string) (catalog.Playlist, error) {
	if _, err := r.Get(ctx, name); err != nil {
		return catalog.Playlist{}, err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO playlist_shots (playlist, shot_id, added_at) VALUES (?, ?, ?)
		ON CONFLICT(playlist, shot_id) DO NOTHING
	`, name, shotID, time.Now())
	if err != nil {
		return catalog.Playlist{}, err
	}
	r.touch(ctx, name)
	return r.Get(ctx, name)
}

func (r *PlaylistRepository) RemoveShot(ctx context.Context, name, shotID string) (catalog.Playlist, error) {
	if _, err := r.Get(ctx, name); err != nil {
		return catalog.Playlist{}, err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM playlist_shots WHERE playlist = ? AND shot_id = ?", name, shotID); err != nil {
		return catalog.Playlist{}, err
	}
	r.touch(ctx, name)
	return r.Get(ctx, name)
}

func (r *PlaylistRepository) touch(ctx context.Context, name string) {
	r.db.ExecContext(ctx, "UPDATE playlists SET updated_at = ? WHERE name = ?", time.Now(), name)
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
