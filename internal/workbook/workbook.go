// Package workbook reads workbook snapshots from disk and watches them for
// changes.
package workbook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/roicase/pkg/models"
)

// Format is a workbook file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for file extensions other than .yaml, .yml and .json.
var ErrUnknownFormat = errors.New("unknown workbook format")

// FormatOf picks the encoding from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// Load reads and decodes the workbook at path.
func Load(path string) (*models.Workbook, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	wb, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wb, nil
}

// Decode reads one workbook in the given format. Unknown fields are errors
// so that typos such as "formular" do not silently drop data.
func Decode(r io.Reader, format Format) (*models.Workbook, error) {
	var wb models.Workbook
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&wb); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("decode yaml: empty document")
			}
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wb); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &wb, nil
}

// Encode writes wb in the given format.
func Encode(w io.Writer, wb *models.Workbook, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(wb); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(wb)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Parse decodes an in-memory document, sniffing JSON by its leading brace.
func Parse(data []byte) (*models.Workbook, error) {
	format := FormatYAML
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		format = FormatJSON
	}
	return Decode(bytes.NewReader(data), format)
}
