// package formatter exports song metadata, history and batch manifests to various formats
// (CSV, Markdown, plain text, JSON, YAML)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"gopkg.in/yaml.v3"
)

// Formats supported by [WriteSongs].
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// songRecord is the flat rendering of a song used by the CSV and YAML exporters.
type songRecord struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Artist   string  `yaml:"artist"`
	Album    string  `yaml:"album,omitempty"`
	Duration float64 `yaml:"duration"`
	ISRC     string  `yaml:"isrc,omitempty"`
	URL      string  `yaml:"url"`
	Explicit bool    `yaml:"explicit"`
	Lyrics   bool    `yaml:"lyrics"`
}

func toRecord(s models.SongInfo) songRecord {
	return songRecord{
		ID:       s.SongID,
		Name:     s.Name,
		Artist:   s.Artist,
		Album:    s.AlbumName,
		Duration: s.Duration,
		ISRC:     s.ISRC,
		URL:      s.URL,
		Explicit: s.Explicit,
		Lyrics:   s.HasLyrics(),
	}
}

// SongsToCSV converts songs to CSV format with columns: ID, Name, Artist, Album, Duration, ISRC, URL
func SongsToCSV(songs []models.SongInfo) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artist", "Album", "Duration", "ISRC", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, song := range songs {
		r := toRecord(song)
		record := []string{
			r.ID,
			r.Name,
			r.Artist,
			r.Album,
			strconv.FormatFloat(r.Duration, 'f', -1, 64),
			r.ISRC,
			r.URL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SongsToMarkdown converts songs to Markdown format with optional cover image
func SongsToMarkdown(title string, songs []models.SongInfo, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	buf.WriteString(fmt.Sprintf("**Songs**: %d\n", len(songs)))
	if len(songs) > 0 && songs[0].ListURL != "" {
		buf.WriteString(fmt.Sprintf("**Source**: %s\n", songs[0].ListURL))
	}
	buf.WriteString("\n## Songs\n\n")

	for i, song := range songs {
		albumPart := ""
		if song.AlbumName != "" {
			albumPart = fmt.Sprintf(" (%s)", song.AlbumName)
		}
		explicit := ""
		if song.Explicit {
			explicit = " 🅴"
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]%s\n",
			i+1, song.Artist, song.Name, albumPart, shared.FormatDuration(song.Duration), explicit))
	}

	return buf.Bytes(), nil
}

// SongsToText converts songs to plain text format
func SongsToText(title string, songs []models.SongInfo) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		buf.WriteString(fmt.Sprintf("List: %s\n", title))
	}
	buf.WriteString(fmt.Sprintf("Songs: %d\n\n", len(songs)))

	for i, song := range songs {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, song.DisplayName()))
	}

	return buf.Bytes(), nil
}

// SongsToJSON converts songs to indented JSON in spotdl's own field layout
func SongsToJSON(songs []models.SongInfo) ([]byte, error) {
	return shared.MarshalJSON(songs, true)
}

// SongsToYAML converts songs to a YAML list of flat records
func SongsToYAML(songs []models.SongInfo) ([]byte, error) {
	records := make([]songRecord, 0, len(songs))
	for _, s := range songs {
		records = append(records, toRecord(s))
	}
	data, err := yaml.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// ListTitle returns the collection name songs were fetched from, or "Songs" for loose tracks.
func ListTitle(songs []models.SongInfo) string {
	if len(songs) > 0 && songs[0].ListName != "" {
		return songs[0].ListName
	}
	if len(songs) == 1 {
		return songs[0].DisplayName()
	}
	return "Songs"
}

// Render encodes songs in format. Markdown has no cover image.
func Render(songs []models.SongInfo, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return SongsToCSV(songs)
	case FormatMarkdown, "md":
		return SongsToMarkdown(ListTitle(songs), songs, "")
	case FormatText, "text":
		return SongsToText(ListTitle(songs), songs)
	case FormatYAML, "yml":
		return SongsToYAML(songs)
	case FormatJSON, "":
		return SongsToJSON(songs)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// WriteSongs writes songs in format to path and returns the path written.
func WriteSongs(songs []models.SongInfo, format, path string) (string, error) {
	data, err := Render(songs, format)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return path, nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	return downloadImage(&http.Client{Timeout: 30 * time.Second}, url)
}

func downloadImage(client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports songs to Markdown format in a dedicated directory.
//
// The cover of the first song is downloaded when it has one; a failed download only drops the image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(songs []models.SongInfo, outputDir string) (*MarkdownExportResult, error) {
	return writeMarkdownExport(http.DefaultClient, songs, outputDir)
}

func writeMarkdownExport(client *http.Client, songs []models.SongInfo, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("%w: output directory", shared.ErrMissingArgument)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if len(songs) > 0 && songs[0].CoverURL != "" {
		imageData, err := downloadImage(client, songs[0].CoverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := SongsToMarkdown(ListTitle(songs), songs, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// HistoryToCSV converts history entries to CSV format with columns: Sequence, Status, Name, URL, Started, Elapsed
func HistoryToCSV(entries []*models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Sequence", "Status", "Name", "URL", "Started", "Elapsed"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		record := []string{
			strconv.Itoa(e.Sequence()),
			string(e.Status()),
			e.Name(),
			e.URL(),
			e.StartedAt().Format(time.RFC3339),
			e.Elapsed().Round(time.Second).String(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}
