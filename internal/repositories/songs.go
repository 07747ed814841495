package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/models"
)

// SongRepository caches song metadata returned by metadata fetches.
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

// Save upserts song by its song id. Songs without an id are skipped.
func (r *SongRepository) Save(song models.SongInfo) error {
	if song.SongID == "" {
		return nil
	}

	query := `
		INSERT INTO songs (song_id, name, artist, album_name, url, isrc, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(song_id) DO UPDATE SET
			name = excluded.name,
			artist = excluded.artist,
			album_name = excluded.album_name,
			url = excluded.url,
			isrc = excluded.isrc,
			duration = excluded.duration
	`
	_, err := r.db.Exec(query, song.SongID, song.Name, song.Artist, song.AlbumName, song.URL, song.ISRC, song.Duration, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save song %s: %w", song.SongID, err)
	}
	return nil
}

// SaveAll saves songs in one transaction.
func (r *SongRepository) SaveAll(songs []models.SongInfo) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO songs (song_id, name, artist, album_name, url, isrc, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(song_id) DO UPDATE SET
			name = excluded.name,
			artist = excluded.artist,
			album_name = excluded.album_name,
			url = excluded.url,
			isrc = excluded.isrc,
			duration = excluded.duration
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, song := range songs {
		if song.SongID == "" {
			continue
		}
		if _, err := stmt.Exec(song.SongID, song.Name, song.Artist, song.AlbumName, song.URL, song.ISRC, song.Duration, now); err != nil {
			return fmt.Errorf("failed to save song %s: %w", song.SongID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit songs: %w", err)
	}
	return nil
}

// Get retrieves the cached metadata of a song.
func (r *SongRepository) Get(songID string) (models.SongInfo, error) {
	row := r.db.QueryRow(`SELECT song_id, name, artist, album_name, url, isrc, duration FROM songs WHERE song_id = ?`, songID)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SongInfo{}, fmt.Errorf("song not found: %s", songID)
	}
	return song, err
}

// List returns every cached song ordered by artist and name.
func (r *SongRepository) List() ([]models.SongInfo, error) {
	rows, err := r.db.Query(`SELECT song_id, name, artist, album_name, url, isrc, duration FROM songs ORDER BY artist, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []models.SongInfo
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return songs, nil
}

func scanSong(row scanner) (models.SongInfo, error) {
	var s models.SongInfo
	if err := row.Scan(&s.SongID, &s.Name, &s.Artist, &s.AlbumName, &s.URL, &s.ISRC, &s.Duration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("failed to scan song: %w", err)
	}
	return s, nil
}
