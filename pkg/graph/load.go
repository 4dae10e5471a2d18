package graph

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/branchtale/pkg/domain"
	"gopkg.in/yaml.v3"
)

// StoryFile represents the structure of a story document (YAML or JSON).
type StoryFile struct {
	Title string             `yaml:"title" json:"title"`
	Nodes []domain.StoryNode `yaml:"nodes" json:"nodes"`
}

// LoadFile reads a story document from disk and validates it.
// The format is chosen by extension: .json is JSON, anything else is YAML.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// LoadFS reads a story document from a filesystem (e.g. an embed.FS).
func LoadFS(fsys fs.FS, name string) (*Graph, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}
	return Parse(data, filepath.Ext(name))
}

// Parse decodes a story document and builds a validated Graph.
func Parse(data []byte, ext string) (*Graph, error) {
	var doc StoryFile
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse story JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse story YAML: %w", err)
		}
	}

	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("%w: story file has no nodes", domain.ErrInvalidGraph)
	}
	return New(doc.Nodes...)
}
