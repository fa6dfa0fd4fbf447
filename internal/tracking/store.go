package tracking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/gotaku-app/gotaku/internal/util"
)

const (
	cacheSizeKB       = -20000
	mmapSize          = 268435456
	busyTimeoutMS     = 5000
	walAutoCheckpoint = 1000
	maxOpenConns      = 5
	maxIdleConns      = 2
)

// Store is the SQLite-backed progress store. All methods tolerate a nil
// receiver so callers can carry an optional tracker without guarding every
// call site.
type Store struct {
	db     *sql.DB
	upsert *sql.Stmt
	get    *sql.Stmt
	resume *sql.Stmt
	all    *sql.Stmt
	remove *sql.Stmt
}

// DefaultPath returns the per-user location of the progress database.
func DefaultPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "gotaku", "progress.db")
}

// Open opens or creates the progress database at dbPath. It fails with
// ErrCgoDisabled on builds without SQLite support.
func Open(dbPath string) (*Store, error) {
	if !IsCgoEnabled {
		return nil, ErrCgoDisabled
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, errors.Wrap(err, "create data directory")
	}

	db, err := sql.Open("sqlite3", dsnFor(dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "open progress database")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.prepare(); err != nil {
		_ = db.Close()
		return nil, err
	}
	util.Debugf("progress store open at %s", dbPath)
	return s, nil
}

// dsnFor builds the connection string with WAL and the pool tuning that
// keeps concurrent save and read from blocking each other. SQLite wants
// forward slashes in URI paths even on Windows.
func dsnFor(dbPath string) string {
	p := dbPath
	mode := ""
	if runtime.GOOS == "windows" {
		p = strings.ReplaceAll(dbPath, `\`, "/")
		mode = "&_mode=rwc"
	}
	return fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_wal_autocheckpoint=%d&_busy_timeout=%d&_cache_size=%d&_mmap_size=%d%s",
		p, walAutoCheckpoint, busyTimeoutMS, cacheSizeKB, mmapSize, mode,
	)
}

func migrate(db *sql.DB) error {
	schema := `CREATE TABLE IF NOT EXISTS watch_progress (
		anime_id         TEXT    NOT NULL,
		episode_id       TEXT    NOT NULL,
		episode_number   INTEGER NOT NULL,
		position_seconds INTEGER NOT NULL CHECK(position_seconds >= 0),
		duration_seconds INTEGER NOT NULL CHECK(duration_seconds > 0),
		title            TEXT,
		updated_at       INTEGER NOT NULL,
		PRIMARY KEY (anime_id, episode_id)
	);`
	if _, err := db.Exec(schema); err != nil {
		return errors.Wrap(err, "create schema")
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_watch_progress_recency
		ON watch_progress(anime_id, updated_at DESC)`); err != nil {
		return errors.Wrap(err, "create index")
	}
	if _, err := db.Exec(`PRAGMA optimize`); err != nil {
		return errors.Wrap(err, "optimize")
	}
	return nil
}

func (s *Store) prepare() error {
	var err error
	if s.upsert, err = s.db.Prepare(`INSERT INTO watch_progress
		(anime_id, episode_id, episode_number, position_seconds, duration_seconds, title, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(anime_id, episode_id) DO UPDATE SET
			episode_number   = excluded.episode_number,
			position_seconds = excluded.position_seconds,
			duration_seconds = excluded.duration_seconds,
			title            = excluded.title,
			updated_at       = excluded.updated_at`); err != nil {
		return errors.Wrap(err, "prepare upsert")
	}
	if s.get, err = s.db.Prepare(`SELECT episode_number, position_seconds, duration_seconds, title, updated_at
		FROM watch_progress WHERE anime_id = ? AND episode_id = ?`); err != nil {
		return errors.Wrap(err, "prepare get")
	}
	if s.resume, err = s.db.Prepare(`SELECT episode_id, episode_number, position_seconds, duration_seconds, title, updated_at
		FROM watch_progress WHERE anime_id = ?
		ORDER BY updated_at DESC, episode_number DESC LIMIT 1`); err != nil {
		return errors.Wrap(err, "prepare resume")
	}
	if s.all, err = s.db.Prepare(`SELECT anime_id, episode_id, episode_number, position_seconds, duration_seconds, title, updated_at
		FROM watch_progress ORDER BY updated_at DESC`); err != nil {
		return errors.Wrap(err, "prepare all")
	}
	if s.remove, err = s.db.Prepare(`DELETE FROM watch_progress
		WHERE anime_id = ? AND episode_id = ?`); err != nil {
		return errors.Wrap(err, "prepare delete")
	}
	return nil
}

// Save upserts one record. A zero UpdatedAt means now; a negative position
// is clamped to zero.
func (s *Store) Save(rec Record) error {
	if s == nil || s.upsert == nil {
		return ErrNotOpen
	}
	if rec.Duration <= 0 {
		return errors.Errorf("duration %d must be positive", rec.Duration)
	}
	if rec.Position < 0 {
		rec.Position = 0
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.upsert.Exec(
		rec.AnimeID, rec.EpisodeID, rec.Number,
		rec.Position, rec.Duration, rec.Title,
		rec.UpdatedAt.Unix(),
	)
	return errors.Wrap(err, "save progress")
}

// Get returns the record for one episode, or nil when none was saved.
func (s *Store) Get(animeID, episodeID string) (*Record, error) {
	if s == nil || s.get == nil {
		return nil, ErrNotOpen
	}
	rec := Record{AnimeID: animeID, EpisodeID: episodeID}
	var ts int64
	err := s.get.QueryRow(animeID, episodeID).Scan(
		&rec.Number, &rec.Position, &rec.Duration, &rec.Title, &ts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load progress")
	}
	rec.UpdatedAt = time.Unix(ts, 0)
	return &rec, nil
}

// Resume returns the most recently watched episode of an anime, or nil
// when nothing was watched yet.
func (s *Store) Resume(animeID string) (*Record, error) {
	if s == nil || s.resume == nil {
		return nil, ErrNotOpen
	}
	rec := Record{AnimeID: animeID}
	var ts int64
	err := s.resume.QueryRow(animeID).Scan(
		&rec.EpisodeID, &rec.Number, &rec.Position, &rec.Duration, &rec.Title, &ts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load resume point")
	}
	rec.UpdatedAt = time.Unix(ts, 0)
	return &rec, nil
}

// All returns every saved record, most recently watched first.
func (s *Store) All() ([]Record, error) {
	if s == nil || s.all == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.all.Query()
	if err != nil {
		return nil, errors.Wrap(err, "list progress")
	}
	defer func() { _ = rows.Close() }()

	var list []Record
	for rows.Next() {
		var rec Record
		var ts int64
		if err := rows.Scan(
			&rec.AnimeID, &rec.EpisodeID, &rec.Number,
			&rec.Position, &rec.Duration, &rec.Title, &ts,
		); err != nil {
			return nil, errors.Wrap(err, "scan progress row")
		}
		rec.UpdatedAt = time.Unix(ts, 0)
		list = append(list, rec)
	}
	return list, errors.Wrap(rows.Err(), "iterate progress rows")
}

// Delete removes one episode's record. Deleting a missing record is not an
// error.
func (s *Store) Delete(animeID, episodeID string) error {
	if s == nil || s.remove == nil {
		return ErrNotOpen
	}
	_, err := s.remove.Exec(animeID, episodeID)
	return errors.Wrap(err, "delete progress")
}

// Close releases the statements and the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	for _, stmt := range []*sql.Stmt{s.upsert, s.get, s.resume, s.all, s.remove} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}
