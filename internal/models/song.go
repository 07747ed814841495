package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/spotx/internal/shared"
)

// SongInfo is one song as printed by `spotdl save --save-file -`.
//
// Unknown fields are ignored and JSON nulls decode to zero values.
type SongInfo struct {
	Name          string   `json:"name"`
	Artists       []string `json:"artists"`
	Artist        string   `json:"artist"`
	AlbumName     string   `json:"album_name"`
	AlbumArtist   string   `json:"album_artist"`
	Genres        []string `json:"genres"`
	DiscNumber    int      `json:"disc_number"`
	DiscCount     int      `json:"disc_count"`
	Duration      float64  `json:"duration"`
	Year          int      `json:"year"`
	Date          string   `json:"date"`
	TrackNumber   int      `json:"track_number"`
	TracksCount   int      `json:"tracks_count"`
	SongID        string   `json:"song_id"`
	Explicit      bool     `json:"explicit"`
	Publisher     string   `json:"publisher"`
	URL           string   `json:"url"`
	ISRC          string   `json:"isrc"`
	CoverURL      string   `json:"cover_url"`
	CopyrightText string   `json:"copyright_text"`
	DownloadURL   string   `json:"download_url"`
	Popularity    int      `json:"popularity"`
	ListName      string   `json:"list_name"`
	ListURL       string   `json:"list_url"`
	ListPosition  int      `json:"list_position"`
	ListLength    int      `json:"list_length"`
	ArtistID      string   `json:"artist_id"`
	AlbumType     string   `json:"album_type"`
	Lyrics        string   `json:"lyrics"`
	AlbumID       string   `json:"album_id"`
}

// DisplayName renders "Artist - Name", falling back to the URL for songs without metadata.
func (s SongInfo) DisplayName() string {
	switch {
	case s.Name == "" && s.Artist == "":
		return s.URL
	case s.Artist == "":
		return s.Name
	case s.Name == "":
		return s.Artist
	default:
		return s.Artist + " - " + s.Name
	}
}

// HasLyrics reports whether spotdl attached lyrics.
func (s SongInfo) HasLyrics() bool {
	return s.Lyrics != ""
}

// DecodeSongs decodes spotdl's JSON output: a list when the payload starts with "[", otherwise a single song.
//
// Blank output yields an error wrapping both [shared.ErrDecode] and [shared.ErrEmptyMetadata].
// stderr is attached to the error message for diagnostics.
func DecodeSongs(raw, stderr string) ([]SongInfo, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: %w. See error report for details. Raw Error:\n---\n%s\n---",
			shared.ErrDecode, shared.ErrEmptyMetadata, stderr)
	}

	if strings.HasPrefix(text, "[") {
		var songs []SongInfo
		if err := json.Unmarshal([]byte(text), &songs); err != nil {
			return nil, decodeError(text, stderr, err)
		}
		return songs, nil
	}

	var song SongInfo
	if err := json.Unmarshal([]byte(text), &song); err != nil {
		return nil, decodeError(text, stderr, err)
	}
	return []SongInfo{song}, nil
}

func decodeError(raw, stderr string, err error) error {
	return fmt.Errorf("%w: %w\nRaw output below:\n---\n%s\n---\n\nRaw Error:\n---\n%s\n---",
		shared.ErrDecode, err, raw, stderr)
}
