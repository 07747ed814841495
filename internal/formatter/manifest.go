package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/spotx/internal/shared"
	"gopkg.in/yaml.v3"
)

// ManifestItem is one line of a batch manifest.
type ManifestItem struct {
	URL     string `json:"url" yaml:"url"`
	Key     string `json:"key" yaml:"key"`
	Name    string `json:"name" yaml:"name"`
	Status  string `json:"status" yaml:"status"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed string `json:"elapsed" yaml:"elapsed"`
}

// BatchManifest summarizes a batch download run.
type BatchManifest struct {
	Format          string         `json:"format" yaml:"format"`
	CreatedAt       time.Time      `json:"created_at" yaml:"created_at"`
	Total           int            `json:"total" yaml:"total"`
	Successful      int            `json:"successful" yaml:"successful"`
	Failed          int            `json:"failed" yaml:"failed"`
	OutputDirectory string         `json:"output_directory" yaml:"output_directory"`
	Items           []ManifestItem `json:"items" yaml:"items"`
}

// WriteBatchManifest writes m to path as YAML when m.Format is "yaml", JSON otherwise.
func WriteBatchManifest(m BatchManifest, path string) error {
	var (
		data []byte
		err  error
	)
	switch m.Format {
	case FormatYAML, "yml":
		data, err = yaml.Marshal(m)
	default:
		data, err = shared.MarshalJSON(m, true)
	}
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
