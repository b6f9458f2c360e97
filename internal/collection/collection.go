// Package collection parses Postman collection files (v2.0 and v2.1) and
// flattens their nested folder tree into an ordered request list.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrParse is returned for invalid JSON or malformed collection documents.
var ErrParse = errors.New("collection parse error")

// ErrStructure is returned when the collection tree violates a structural
// bound, such as exceeding the nesting depth guard.
var ErrStructure = errors.New("collection structure error")

// MaxDepth bounds folder nesting. Deeper trees fail rather than risk
// unbounded traversal on adversarial input.
const MaxDepth = 64

// Collection is a parsed Postman collection document.
type Collection struct {
	Info     Info       `json:"info"`
	Item     []Item     `json:"item"`
	Variable []Variable `json:"variable,omitempty"`
}

// Info holds the collection's identity block.
type Info struct {
	PostmanID   string `json:"_postman_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema"`
}

// Item is a node of the collection tree. A node with a non-empty Item list
// is a folder; otherwise a non-nil Request makes it a request leaf.
type Item struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Item        []Item   `json:"item,omitempty"`
	Request     *Request `json:"request,omitempty"`
}

// Request is the wire shape of a Postman request definition.
type Request struct {
	Method      string      `json:"method"`
	Header      []Header    `json:"header,omitempty"`
	Body        *Body       `json:"body,omitempty"`
	URL         interface{} `json:"url"` // string or structured object
	Description string      `json:"description,omitempty"`
}

// Header is an ordered key/value pair attached to a request.
type Header struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Body carries the request body in one of the supported modes.
type Body struct {
	Mode       string  `json:"mode"`
	Raw        string  `json:"raw,omitempty"`
	URLEncoded []Param `json:"urlencoded,omitempty"`
	FormData   []Param `json:"formdata,omitempty"`
}

// Param is an entry of a urlencoded or formdata body.
type Param struct {
	Key      string `json:"key"`
	Value    string `json:"value,omitempty"`
	Type     string `json:"type,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Variable is a collection-level default value.
type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Version reports "2.1" or "2.0" based on the schema URL.
func (c *Collection) Version() string {
	if strings.Contains(c.Info.Schema, "v2.1") {
		return "2.1"
	}
	return "2.0"
}

// Defaults returns the collection-declared variable defaults as a map.
func (c *Collection) Defaults() map[string]string {
	if len(c.Variable) == 0 {
		return nil
	}
	defaults := make(map[string]string, len(c.Variable))
	for _, v := range c.Variable {
		defaults[v.Key] = v.Value
	}
	return defaults
}

// DetectFormat reports whether content looks like a Postman collection.
func DetectFormat(content []byte) bool {
	schema := gjson.GetBytes(content, "info.schema").String()
	return strings.Contains(schema, "schema.getpostman.com/json/collection")
}

// Load reads and parses a collection file.
func Load(path string) (*Collection, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrParse, path, err)
	}
	coll, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return coll, nil
}

// Parse decodes a collection document. Invalid JSON and documents without an
// item array fail; an empty item array is a valid, empty collection.
func Parse(content []byte) (*Collection, error) {
	if !gjson.ValidBytes(content) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrParse)
	}
	if !gjson.GetBytes(content, "item").Exists() {
		return nil, fmt.Errorf("%w: missing item array", ErrParse)
	}

	var coll Collection
	if err := json.Unmarshal(content, &coll); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &coll, nil
}

// URLString renders a request URL, which Postman stores either as a plain
// string or as a structured object with raw/protocol/host/path parts.
func URLString(url interface{}) string {
	switch v := url.(type) {
	case string:
		return v
	case map[string]interface{}:
		if raw, ok := v["raw"].(string); ok && raw != "" {
			return raw
		}
		var result strings.Builder
		if protocol, ok := v["protocol"].(string); ok {
			result.WriteString(protocol)
			result.WriteString("://")
		}
		switch host := v["host"].(type) {
		case string:
			result.WriteString(host)
		case []interface{}:
			var parts []string
			for _, h := range host {
				if s, ok := h.(string); ok {
					parts = append(parts, s)
				}
			}
			result.WriteString(strings.Join(parts, "."))
		}
		if port, ok := v["port"].(string); ok {
			result.WriteString(":")
			result.WriteString(port)
		}
		if path, ok := v["path"].([]interface{}); ok {
			for _, p := range path {
				if s, ok := p.(string); ok {
					result.WriteString("/")
					result.WriteString(s)
				}
			}
		}
		if query, ok := v["query"].([]interface{}); ok {
			var pairs []string
			for _, q := range query {
				entry, ok := q.(map[string]interface{})
				if !ok {
					continue
				}
				key, _ := entry["key"].(string)
				value, _ := entry["value"].(string)
				if key != "" {
					pairs = append(pairs, key+"="+value)
				}
			}
			if len(pairs) > 0 {
				result.WriteString("?")
				result.WriteString(strings.Join(pairs, "&"))
			}
		}
		return result.String()
	}
	return ""
}
