package vars

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/darmado/postman2burp/internal/encoding"
)

// InsertionPoint is a parsed insertion-point file: externally supplied values
// for collection placeholders, with optional per-value encodings.
type InsertionPoint struct {
	ID        string           `json:"id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Values    []InsertionValue `json:"values,omitempty"`
	Variables []InsertionValue `json:"variables,omitempty"`
}

// InsertionValue is one entry. Enabled defaults to true when absent.
// Encoding, when set, names a transform from the encoding package applied
// Iterations times before the value enters the table.
type InsertionValue struct {
	Key        string         `json:"key"`
	Value      string         `json:"value"`
	Type       string         `json:"type,omitempty"`
	Enabled    *bool          `json:"enabled,omitempty"`
	Encoding   string         `json:"encoding,omitempty"`
	Iterations IterationCount `json:"encoding_iterations,omitempty"`
}

// IterationCount accepts both JSON numbers and numeric strings. Values that
// do not parse, or parse below 1, become 1.
type IterationCount int

func (c *IterationCount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		n = 1
	}
	*c = IterationCount(n)
	return nil
}

func (v InsertionValue) enabled() bool {
	return v.Enabled == nil || *v.Enabled
}

// LoadInsertionPoint reads and parses an insertion-point file, then
// validates every referenced encoding so a bad configuration fails before
// any dispatch.
func LoadInsertionPoint(path string) (*InsertionPoint, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrParse, path, err)
	}
	point, err := ParseInsertionPoint(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return point, nil
}

// ParseInsertionPoint decodes insertion-point JSON. Both "values" and
// "variables" array names are accepted.
func ParseInsertionPoint(content []byte) (*InsertionPoint, error) {
	var point InsertionPoint
	if err := json.Unmarshal(content, &point); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := point.validate(); err != nil {
		return nil, err
	}
	return &point, nil
}

func (p *InsertionPoint) entries() []InsertionValue {
	if len(p.Values) > 0 {
		return p.Values
	}
	return p.Variables
}

func (p *InsertionPoint) validate() error {
	for _, v := range p.entries() {
		if v.Encoding == "" {
			continue
		}
		if err := encoding.Validate(v.Encoding); err != nil {
			return fmt.Errorf("variable %q: %w", v.Key, err)
		}
	}
	return nil
}

// Resolved returns the enabled entries as a key/value map with encodings
// applied. The base_url entry is exempt from encoding so the request target
// itself is never mangled.
func (p *InsertionPoint) Resolved() (map[string]string, error) {
	resolved := make(map[string]string)
	for _, v := range p.entries() {
		if !v.enabled() {
			continue
		}
		value := v.Value
		if v.Encoding != "" && v.Key != "base_url" {
			encoded, err := encoding.Apply(v.Encoding, value, int(v.Iterations))
			if err != nil {
				return nil, fmt.Errorf("variable %q: %w", v.Key, err)
			}
			value = encoded
		}
		resolved[v.Key] = value
	}
	return resolved, nil
}
