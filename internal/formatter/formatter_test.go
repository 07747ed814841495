package formatter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	th "github.com/desertthunder/spotx/internal/testing"
	"gopkg.in/yaml.v3"
)

func testSongs() []models.SongInfo {
	return []models.SongInfo{
		{
			SongID:    "song1",
			Name:      "Song One",
			Artist:    "Artist One",
			AlbumName: "Album One",
			Duration:  185,
			ISRC:      "USRC12345678",
			URL:       "https://open.spotify.com/track/song1",
			ListName:  "Road Trip",
			ListURL:   "https://open.spotify.com/playlist/abc",
			Explicit:  true,
			Lyrics:    "la la",
		},
		{
			SongID:   "song2",
			Name:     "Song Two",
			Artist:   "Artist Two",
			Duration: 240.5,
			URL:      "https://open.spotify.com/track/song2",
			ListName: "Road Trip",
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("SongsToCSV", func(t *testing.T) {
		data, err := SongsToCSV(testSongs())
		if err != nil {
			t.Fatalf("SongsToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "ID,Name,Artist,Album,Duration,ISRC,URL\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "song1,Song One,Artist One,Album One,185,USRC12345678,https://open.spotify.com/track/song1") {
			t.Errorf("CSV missing song1 row, got: %s", output)
		}
		if !strings.Contains(output, "song2,Song Two,Artist Two,,240.5,,") {
			t.Errorf("CSV missing song2 row, got: %s", output)
		}
	})

	t.Run("SongsToCSV Empty", func(t *testing.T) {
		data, err := SongsToCSV(nil)
		if err != nil {
			t.Fatalf("SongsToCSV failed: %v", err)
		}
		if lines := strings.Count(string(data), "\n"); lines != 1 {
			t.Errorf("expected header only, got %d lines", lines)
		}
	})

	t.Run("SongsToMarkdown", func(t *testing.T) {
		data, err := SongsToMarkdown("Road Trip", testSongs(), "cover.jpg")
		if err != nil {
			t.Fatalf("SongsToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Road Trip",
			"![Cover](cover.jpg)",
			"**Songs**: 2",
			"**Source**: https://open.spotify.com/playlist/abc",
			"1. Artist One - Song One (Album One) [3:05] 🅴",
			"2. Artist Two - Song Two [4:01]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("SongsToMarkdown Without Image", func(t *testing.T) {
		data, _ := SongsToMarkdown("X", testSongs(), "")
		if strings.Contains(string(data), "![Cover]") {
			t.Error("Markdown should not reference a cover image")
		}
	})

	t.Run("SongsToText", func(t *testing.T) {
		data, err := SongsToText("Road Trip", testSongs())
		if err != nil {
			t.Fatalf("SongsToText failed: %v", err)
		}
		want := "List: Road Trip\nSongs: 2\n\n1. Artist One - Song One\n2. Artist Two - Song Two\n"
		if string(data) != want {
			t.Errorf("SongsToText() = %q, want %q", data, want)
		}
	})

	t.Run("SongsToJSON", func(t *testing.T) {
		data, err := SongsToJSON(testSongs())
		if err != nil {
			t.Fatalf("SongsToJSON failed: %v", err)
		}
		var decoded []models.SongInfo
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].SongID != "song1" {
			t.Errorf("unexpected decoded songs %+v", decoded)
		}
		if !strings.Contains(string(data), `"song_id": "song1"`) {
			t.Error("JSON should keep spotdl field names")
		}
	})

	t.Run("SongsToYAML", func(t *testing.T) {
		data, err := SongsToYAML(testSongs())
		if err != nil {
			t.Fatalf("SongsToYAML failed: %v", err)
		}
		var decoded []map[string]any
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid YAML: %v", err)
		}
		if len(decoded) != 2 {
			t.Fatalf("expected 2 records, got %d", len(decoded))
		}
		if decoded[0]["id"] != "song1" || decoded[0]["lyrics"] != true {
			t.Errorf("unexpected first record %v", decoded[0])
		}
		if _, ok := decoded[1]["album"]; ok {
			t.Error("empty album should be omitted")
		}
	})

	t.Run("Render", func(t *testing.T) {
		tc := []struct {
			format string
			want   string
		}{
			{"csv", "ID,Name"},
			{"markdown", "# Road Trip"},
			{"md", "# Road Trip"},
			{"txt", "List: Road Trip"},
			{"yaml", "- id: song1"},
			{"json", `"name": "Song One"`},
			{"", `"name": "Song One"`},
		}
		for _, tt := range tc {
			data, err := Render(testSongs(), tt.format)
			if err != nil {
				t.Errorf("Render(%q) failed: %v", tt.format, err)
				continue
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("Render(%q) missing %q", tt.format, tt.want)
			}
		}

		if _, err := Render(testSongs(), "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("ListTitle", func(t *testing.T) {
		if got := ListTitle(testSongs()); got != "Road Trip" {
			t.Errorf("ListTitle() = %q", got)
		}
		if got := ListTitle([]models.SongInfo{{Name: "A", Artist: "B"}}); got != "B - A" {
			t.Errorf("ListTitle() = %q", got)
		}
		if got := ListTitle(nil); got != "Songs" {
			t.Errorf("ListTitle() = %q", got)
		}
	})

	t.Run("HistoryToCSV", func(t *testing.T) {
		started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		entry := models.RestoreHistoryEntry("id1", 7, "key", "https://open.spotify.com/track/x", "Song",
			models.HistoryCompleted, "", "", started, started.Add(90*time.Second), started.Add(90*time.Second), nil)

		data, err := HistoryToCSV([]*models.HistoryEntry{entry})
		if err != nil {
			t.Fatalf("HistoryToCSV failed: %v", err)
		}
		want := "7,completed,Song,https://open.spotify.com/track/x,2025-01-02T03:04:05Z,1m30s"
		if !strings.Contains(string(data), want) {
			t.Errorf("HistoryToCSV missing %q, got %s", want, data)
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("Empty URL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("expected error for empty URL")
		}
	})

	t.Run("Status Error", func(t *testing.T) {
		client := &http.Client{Transport: th.NewMockRoundTripper(&http.Response{
			StatusCode: http.StatusNotFound,
			Body:       http.NoBody,
		}, nil)}
		if _, err := downloadImage(client, "https://example.com/cover.jpg"); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("Transport Error", func(t *testing.T) {
		client := &http.Client{Transport: th.NewMockRoundTripper(nil, errors.New("dial failed"))}
		if _, err := downloadImage(client, "https://example.com/cover.jpg"); err == nil {
			t.Error("expected transport error")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteSongs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "songs.csv")
		got, err := WriteSongs(testSongs(), "csv", path)
		if err != nil {
			t.Fatalf("WriteSongs failed: %v", err)
		}
		if got != path {
			t.Errorf("WriteSongs returned %q, want %q", got, path)
		}
		th.AssertFileExists(t, path)
		if !strings.Contains(th.MustReadFile(t, path), "Song One") {
			t.Error("written file missing content")
		}
	})

	t.Run("WriteSongs Unknown Format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "songs.xml")
		if _, err := WriteSongs(testSongs(), "xml", path); err == nil {
			t.Error("expected error for unknown format")
		}
		if _, err := os.Stat(path); err == nil {
			t.Error("no file should be written for an unknown format")
		}
	})

	t.Run("WriteMarkdownExport With Cover", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("jpeg-bytes"))
		}))
		defer srv.Close()

		songs := testSongs()
		songs[0].CoverURL = srv.URL + "/cover.jpg"
		dir := filepath.Join(t.TempDir(), "export")

		res, err := writeMarkdownExport(srv.Client(), songs, dir)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}
		if len(res.Files) != 2 || res.CoverImage == "" {
			t.Errorf("expected README and cover, got %+v", res)
		}
		if th.MustReadFile(t, res.CoverImage) != "jpeg-bytes" {
			t.Error("cover image content mismatch")
		}
		if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "![Cover](cover.jpg)") {
			t.Error("README should reference the cover")
		}
	})

	t.Run("WriteMarkdownExport Cover Failure", func(t *testing.T) {
		songs := testSongs()
		songs[0].CoverURL = "https://example.com/missing.jpg"
		client := &http.Client{Transport: th.NewMockRoundTripper(nil, errors.New("offline"))}

		res, err := writeMarkdownExport(client, songs, t.TempDir())
		if err != nil {
			t.Fatalf("cover failures should not fail the export: %v", err)
		}
		if len(res.Files) != 1 || res.CoverImage != "" {
			t.Errorf("expected README only, got %+v", res)
		}
	})

	t.Run("WriteMarkdownExport Requires Dir", func(t *testing.T) {
		if _, err := WriteMarkdownExport(testSongs(), ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("WriteBatchManifest", func(t *testing.T) {
		manifest := BatchManifest{
			Total:      3,
			Successful: 2,
			Failed:     1,
			Items: []ManifestItem{
				{URL: "u1", Key: "k1", Name: "One", Status: "success", Elapsed: "1s"},
				{URL: "u2", Key: "k2", Name: "Two", Status: "failed", Error: "network timeout"},
			},
		}

		t.Run("JSON", func(t *testing.T) {
			m := manifest
			m.Format = "json"
			path := filepath.Join(t.TempDir(), "manifest.json")
			if err := WriteBatchManifest(m, path); err != nil {
				t.Fatalf("WriteBatchManifest failed: %v", err)
			}
			content := th.MustReadFile(t, path)
			for _, want := range []string{`"format": "json"`, `"total": 3`, `"failed": 1`, `"status": "failed"`, `"network timeout"`} {
				if !strings.Contains(content, want) {
					t.Errorf("manifest missing %s", want)
				}
			}
			if strings.Count(content, `"error"`) != 1 {
				t.Error("empty errors should be omitted")
			}
		})

		t.Run("YAML", func(t *testing.T) {
			m := manifest
			m.Format = "yaml"
			path := filepath.Join(t.TempDir(), "manifest.yaml")
			if err := WriteBatchManifest(m, path); err != nil {
				t.Fatalf("WriteBatchManifest failed: %v", err)
			}
			var decoded BatchManifest
			if err := yaml.Unmarshal([]byte(th.MustReadFile(t, path)), &decoded); err != nil {
				t.Fatalf("manifest is not valid YAML: %v", err)
			}
			if decoded.Successful != 2 || len(decoded.Items) != 2 || decoded.Items[1].Error != "network timeout" {
				t.Errorf("unexpected manifest %+v", decoded)
			}
		})

		t.Run("Write Error", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing", "manifest.json")
			if err := WriteBatchManifest(manifest, path); err == nil {
				t.Error("expected error writing into a missing directory")
			}
		})
	})
}
