package urls

import "testing"

func TestNormalize(t *testing.T) {
	tc := []struct {
		name string
		raw  string
		want string
	}{
		{"trims whitespace", "  https://open.spotify.com/track/abc  ", "https://open.spotify.com/track/abc"},
		{"trailing period", "https://open.spotify.com/track/abc123.", "https://open.spotify.com/track/abc123"},
		{"trailing punctuation run", "https://youtu.be/xyz);,", "https://youtu.be/xyz"},
		{"angle brackets", "<https://open.spotify.com/album/xyz>", "https://open.spotify.com/album/xyz"},
		{"intent wrapper", "intent:https://open.spotify.com/track/abc#Intent;end", "https://open.spotify.com/track/abc"},
		{"unbalanced bracket kept", "<https://open.spotify.com/album/xyz", "<https://open.spotify.com/album/xyz"},
		{"empty", "   ", ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	tc := []struct {
		raw  string
		want bool
	}{
		{"https://open.spotify.com/track/abc123", true},
		{"spotify:track:abc", true},
		{"spotify.link/abcdef", true},
		{"open.spotify.com/playlist/abc", true},
		{"www.youtube.com/watch?v=1", true},
		{"music.youtube.com/watch?v=1", true},
		{"HTTPS://YOUTU.BE/xyz", true},
		{"http://example.com/song", true},
		{"ftp://example.com/song", false},
		{"just some words", false},
		{"", false},
	}

	for _, tt := range tc {
		t.Run(tt.raw, func(t *testing.T) {
			if got := IsSupported(tt.raw); got != tt.want {
				t.Errorf("IsSupported(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tc := []struct {
		raw  string
		want Type
	}{
		{"https://open.spotify.com/track/abc123", Track},
		{"https://open.spotify.com/album/xyz?si=1", Album},
		{"https://open.spotify.com/playlist/37i9dQZF1DX", Playlist},
		{"https://open.spotify.com/artist/0OdUWJ0sBjDrqHygGUXeCF", Artist},
		{"spotify:track:abc", Track},
		{"SPOTIFY:ALBUM:abc", Album},
		{"spotify:playlist:abc", Playlist},
		{"spotify:artist:abc", Artist},
		{"https://youtu.be/xyz", Other},
		{"https://music.youtube.com/watch?v=abc", Other},
		{"https://spotify.link/abc", Other},
		{"https://open.spotify.com/track/", Other},
		{"https://open.spotify.com/track/abc123.", Track},
		{"<https://open.spotify.com/album/xyz>", Album},
	}

	for _, tt := range tc {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Classify(tt.raw); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRoute(t *testing.T) {
	tc := []struct {
		name     string
		typ      Type
		pref     bool
		wantPath Path
		wantSkip bool
	}{
		{"track honors preference off", Track, false, PathDownload, false},
		{"track honors preference on", Track, true, PathDownload, true},
		{"album", Album, true, PathMetadata, false},
		{"playlist", Playlist, false, PathMetadata, false},
		{"artist", Artist, false, PathMetadata, false},
		{"other always skips", Other, false, PathDownload, true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			path, skip := Route(tt.typ, tt.pref)
			if path != tt.wantPath || skip != tt.wantSkip {
				t.Errorf("Route(%v, %v) = (%v, %v), want (%v, %v)", tt.typ, tt.pref, path, skip, tt.wantPath, tt.wantSkip)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	if Track.String() != "track" || Other.String() != "other" {
		t.Errorf("unexpected type names %s %s", Track, Other)
	}
	if PathDownload.String() != "download" || PathMetadata.String() != "metadata" {
		t.Errorf("unexpected path names %s %s", PathDownload, PathMetadata)
	}
	if !Playlist.IsCollection() || Track.IsCollection() {
		t.Error("IsCollection mismatch")
	}
}
