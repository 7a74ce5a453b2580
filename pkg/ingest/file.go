package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/bukget/pkg/catalog"
)

// Supported file formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// File is one catalog document. A file may also be a bare list of plugins, in
// which case only Plugins is set.
type File struct {
	Parser  string           `json:"parser" yaml:"parser"`
	Type    string           `json:"type" yaml:"type"`
	Changes []catalog.Change `json:"changes" yaml:"changes"`
	Plugins []catalog.Plugin `json:"plugins" yaml:"plugins"`
}

// FormatOf returns the format implied by a file extension, or "" when the file
// is not a catalog file
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// LoadFile reads and decodes a catalog file
func LoadFile(path string) (*File, error) {
	format := FormatOf(path)
	if format == "" {
		return nil, fmt.Errorf("unsupported catalog file %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	file, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return file, nil
}

// Decode reads a catalog document in the given format
func Decode(r io.Reader, format string) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func decodeJSON(data []byte) (*File, error) {
	var file File
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &file.Plugins); err != nil {
			return nil, err
		}
		return &file, nil
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func decodeYAML(data []byte) (*File, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	var file File
	if len(root.Content) == 0 {
		return &file, nil
	}
	doc := root.Content[0]
	if doc.Kind == yaml.SequenceNode {
		if err := doc.Decode(&file.Plugins); err != nil {
			return nil, err
		}
		return &file, nil
	}
	if err := doc.Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}
