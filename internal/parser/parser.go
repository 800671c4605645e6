// Package parser picks an input adapter for a byte stream.
package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	csvparser "schemaprof/internal/parser/csv"
	htmlparser "schemaprof/internal/parser/html"
	jsonparser "schemaprof/internal/parser/json"
	yamlparser "schemaprof/internal/parser/yaml"
	"schemaprof/internal/records"
)

// Format names an input adapter.
type Format string

const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// ParseFormat validates a format name. The empty string means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatJSON, FormatCSV, FormatYAML, FormatHTML:
		return f, nil
	case "ndjson", "jsonl":
		return FormatJSON, nil
	case "yml":
		return FormatYAML, nil
	case "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("parser: unknown format %q", s)
	}
}

// FormatFromPath maps a file extension to a format, or FormatAuto.
func FormatFromPath(path string) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "json", "ndjson", "jsonl":
		return FormatJSON
	case "csv", "tsv":
		return FormatCSV
	case "yaml", "yml":
		return FormatYAML
	case "html", "htm":
		return FormatHTML
	default:
		return FormatAuto
	}
}

// Sniff infers the format from the leading bytes of the input.
// Detection is heuristic: markup starts with '<', JSON with '{' or '[',
// YAML with a document marker, list item or comment, and anything else is
// treated as delimited text.
func Sniff(sample []byte) Format {
	trim := bytes.TrimSpace(bytes.TrimPrefix(sample, []byte("\xef\xbb\xbf")))
	if len(trim) == 0 {
		return FormatJSON
	}
	switch trim[0] {
	case '<':
		return FormatHTML
	case '{', '[':
		return FormatJSON
	case '-', '#', '%':
		return FormatYAML
	default:
		return FormatCSV
	}
}

// Options configures Open.
type Options struct {
	Format        Format
	Envelope      string
	Comma         rune
	TableSelector string
}

const sniffBytes = 512

// Open wraps r in the adapter for opts.Format, sniffing when it is auto.
func Open(r io.Reader, opts Options) (records.Reader, Format, error) {
	f := opts.Format
	if f == "" {
		f = FormatAuto
	}
	br := bufio.NewReader(r)
	if f == FormatAuto {
		peek, err := br.Peek(sniffBytes)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, "", fmt.Errorf("parser: sniff: %w", err)
		}
		f = Sniff(peek)
	}

	switch f {
	case FormatJSON:
		return jsonparser.NewReader(br, jsonparser.Options{Envelope: opts.Envelope}), f, nil
	case FormatCSV:
		comma := opts.Comma
		if comma == 0 {
			comma = ','
		}
		return csvparser.NewReader(br, csvparser.Options{Comma: comma}), f, nil
	case FormatYAML:
		return yamlparser.NewReader(br), f, nil
	case FormatHTML:
		rd, err := htmlparser.NewReader(br, htmlparser.Options{TableSelector: opts.TableSelector})
		if err != nil {
			return nil, f, err
		}
		return rd, f, nil
	default:
		return nil, "", fmt.Errorf("parser: unsupported format %q", f)
	}
}
