// Package output renders command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted --output values.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML}

// ParseFormat parses an --output flag value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("invalid output format %q (valid: table, json, yaml)", s)
}

// Printer writes results in one format.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Print renders data. In table format data must implement Table; anything
// else falls back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable, "":
		if t, ok := data.(Table); ok {
			return WriteTable(p.w, t)
		}
		return WriteJSON(p.w, data)
	case FormatJSON:
		return WriteJSON(p.w, data)
	case FormatYAML:
		return WriteYAML(p.w, data)
	}
	return fmt.Errorf("unknown output format %q", p.format)
}

// Printf writes a formatted line regardless of format.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// WriteJSON writes data as indented JSON.
func WriteJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// WriteYAML writes data as YAML.
func WriteYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}
