package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// excerptLimit bounds how much of the source document an error may quote.
const excerptLimit = 500

// ParseError describes a malformed document. Line and column point at the
// problematic token; Excerpt quotes the offending line, truncated.
type ParseError struct {
	Line    int
	Column  int
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes a single YAML document into a normalized, validated Recipe.
// Unknown properties are ignored. The error is a *ParseError for malformed
// input and a Violations list for schema failures.
func Parse(text string) (*Recipe, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, newParseError(text, err, nil)
	}
	return decodeDocument(text, &doc)
}

// ParseReader decodes a single YAML document from r.
func ParseReader(r io.Reader) (*Recipe, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read recipe document: %w", err)
	}
	return Parse(string(data))
}

// ParseFile reads and parses a recipe document from disk.
func ParseFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe file: %w", err)
	}
	return Parse(string(data))
}

// ParseAll decodes a multi-document YAML stream, one Recipe per document.
// At least one document must be present.
func ParseAll(text string) ([]*Recipe, error) {
	dec := yaml.NewDecoder(strings.NewReader(text))
	var out []*Recipe
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newParseError(text, err, nil)
		}
		r, err := decodeDocument(text, &doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, &ParseError{Line: 1, Column: 1, Excerpt: truncate(text, excerptLimit), Err: errors.New("empty document")}
	}
	return out, nil
}

// Serialize renders r as deterministic YAML: two-space indentation, keys in
// declaration order, no document-start marker. Absent optional fields are
// emitted as null so the output round-trips byte for byte.
func Serialize(r *Recipe) (string, error) {
	return encodeDocuments(r)
}

// SerializeAll renders several recipes as one multi-document stream with
// "---" separators between documents.
func SerializeAll(recipes []*Recipe) (string, error) {
	return encodeDocuments(recipes...)
}

func encodeDocuments(recipes ...*Recipe) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, r := range recipes {
		if err := enc.Encode(r); err != nil {
			enc.Close()
			return "", fmt.Errorf("serialize recipe: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("serialize recipe: %w", err)
	}
	return buf.String(), nil
}

func decodeDocument(text string, doc *yaml.Node) (*Recipe, error) {
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, &ParseError{Line: 1, Column: 1, Excerpt: truncate(text, excerptLimit), Err: errors.New("empty document")}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Line:    root.Line,
			Column:  root.Column,
			Excerpt: lineExcerpt(text, root.Line),
			Err:     errors.New("document root must be a mapping"),
		}
	}

	var r Recipe
	if err := doc.Decode(&r); err != nil {
		return nil, newParseError(text, err, doc)
	}
	r.Normalize()
	if viols := r.Validate(); len(viols) > 0 {
		return nil, viols
	}
	return &r, nil
}

var errLinePattern = regexp.MustCompile(`line (\d+)`)

// newParseError extracts the offending position from a yaml error. The yaml
// library reports lines only, so the column is recovered from the parsed
// tree when one is available and defaults to 1 otherwise.
func newParseError(text string, err error, doc *yaml.Node) *ParseError {
	line, column := 0, 0
	if m := errLinePattern.FindStringSubmatch(err.Error()); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	if line > 0 && doc != nil {
		column = columnAt(doc, line)
	}
	if line == 0 {
		line = 1
	}
	if column == 0 {
		column = 1
	}
	return &ParseError{Line: line, Column: column, Excerpt: lineExcerpt(text, line), Err: err}
}

func columnAt(n *yaml.Node, line int) int {
	if n.Line == line && n.Column > 0 {
		return n.Column
	}
	for _, c := range n.Content {
		if col := columnAt(c, line); col > 0 {
			return col
		}
	}
	return 0
}

func lineExcerpt(text string, line int) string {
	if line > 0 {
		lines := strings.Split(text, "\n")
		if line <= len(lines) {
			return truncate(strings.TrimRight(lines[line-1], " \t\r"), excerptLimit)
		}
	}
	return truncate(text, excerptLimit)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
