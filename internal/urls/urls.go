// package urls normalizes and classifies the links users paste into spotx.
//
// [Classify] decides which orchestration path a link takes: Spotify tracks go straight to a download,
// albums, playlists and artists go through a metadata fetch first, and everything else ([Other]) is handed
// to spotdl as-is without fetching metadata.
package urls

import (
	"regexp"
	"strings"
)

// Type is the content category of a link.
type Type int

const (
	Other Type = iota
	Track
	Album
	Playlist
	Artist
)

func (t Type) String() string {
	switch t {
	case Track:
		return "track"
	case Album:
		return "album"
	case Playlist:
		return "playlist"
	case Artist:
		return "artist"
	default:
		return "other"
	}
}

// IsCollection reports whether the link resolves to more than one song.
func (t Type) IsCollection() bool {
	return t == Album || t == Playlist || t == Artist
}

var (
	supported = regexp.MustCompile(`(?i)^\s*(?:https?://|spotify:|spotify\.link/|(?:www\.)?(?:open\.spotify\.com|music\.youtube\.com|youtu\.be|youtube\.com)/).+`)

	patterns = []struct {
		typ    Type
		path   *regexp.Regexp
		scheme string
	}{
		{Track, regexp.MustCompile(`(?i)^https?://open\.spotify\.com/track/[^/?#]+`), "spotify:track:"},
		{Album, regexp.MustCompile(`(?i)^https?://open\.spotify\.com/album/[^/?#]+`), "spotify:album:"},
		{Playlist, regexp.MustCompile(`(?i)^https?://open\.spotify\.com/playlist/[^/?#]+`), "spotify:playlist:"},
		{Artist, regexp.MustCompile(`(?i)^https?://open\.spotify\.com/artist/[^/?#]+`), "spotify:artist:"},
	}
)

// Normalize cleans up text copied from share sheets and messengers:
// surrounding whitespace, intent wrappers, angle-bracket quoting and trailing punctuation.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "intent:")
	s = strings.TrimSuffix(s, "#Intent;end")
	if len(s) >= 2 && strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = s[1 : len(s)-1]
	}
	return strings.TrimRight(s, ".,;)]")
}

// IsSupported reports whether the normalized link uses an accepted scheme or host.
func IsSupported(raw string) bool {
	return supported.MatchString(Normalize(raw))
}

// Classify returns the [Type] of a link. Anything not recognized as a first-party Spotify link is [Other].
func Classify(raw string) Type {
	s := Normalize(raw)
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if p.path.MatchString(s) || strings.HasPrefix(lower, p.scheme) {
			return p.typ
		}
	}
	return Other
}

// Path is the orchestration path chosen for a link.
type Path int

const (
	// PathDownload downloads directly, optionally skipping the metadata fetch.
	PathDownload Path = iota
	// PathMetadata fetches metadata and lets the caller choose what to download.
	PathMetadata
)

func (p Path) String() string {
	if p == PathMetadata {
		return "metadata"
	}
	return "download"
}

// Route maps a link type onto its orchestration path.
//
// skipPreference is the user's "skip info fetch" setting, which only applies to single tracks.
// The returned bool is the skipInfoFetch value for the download path.
func Route(t Type, skipPreference bool) (Path, bool) {
	switch t {
	case Track:
		return PathDownload, skipPreference
	case Album, Playlist, Artist:
		return PathMetadata, false
	default:
		return PathDownload, true
	}
}
