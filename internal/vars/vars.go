// Package vars implements placeholder extraction, the merged variable table,
// and single-pass template substitution.
//
// Two token syntaxes exist. {{name}} placeholders resolve against the
// variable table built from collection defaults and insertion-point values.
// ${NAME} tokens resolve directly from the process environment and are
// handled in an independent pass. Neither pass re-scans inserted values.
package vars

import (
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// ErrParse is returned for unreadable or malformed insertion-point files.
var ErrParse = errors.New("insertion point parse error")

// variablePattern matches {{name}} placeholders. Names may not contain
// braces; surrounding whitespace is tolerated.
var variablePattern = regexp.MustCompile(`\{\{\s*([^{}\s][^{}]*?)\s*\}\}`)

// envPattern matches ${NAME} environment references.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Extract returns the placeholder names found in text, deduplicated, in
// first-appearance order. Postman builtin references ({{$uuid}} and friends)
// are excluded.
func Extract(text string) []string {
	matches := variablePattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var result []string

	for _, match := range matches {
		name := match[1]
		if strings.HasPrefix(name, "$") {
			continue
		}
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}
	return result
}

// Union merges several extraction results into one deduplicated,
// order-preserving list.
func Union(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, set := range sets {
		for _, name := range set {
			if !seen[name] {
				seen[name] = true
				result = append(result, name)
			}
		}
	}
	return result
}

// ExpandEnv resolves ${NAME} tokens from the process environment. Tokens
// without a matching environment variable are left untouched.
func ExpandEnv(text string) string {
	return envPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// LoadEnvFile loads a dotenv file into the process environment. An empty
// path loads ".env" from the working directory; a missing default file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		return godotenv.Load()
	}
	return godotenv.Load(path)
}

// Table is the frozen variable table. Built once before dispatch, read-only
// afterwards.
type Table struct {
	values map[string]string
}

// NewTable builds a table from pre-merged values. Used directly by tests;
// production code goes through Build.
func NewTable(values map[string]string) *Table {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Table{values: copied}
}

// Build merges variable sources in precedence order: collection defaults
// lowest, enabled insertion-point values above them, and process-environment
// values highest. An environment variable whose name matches a key always
// wins.
func Build(defaults map[string]string, point *InsertionPoint) (*Table, error) {
	values := make(map[string]string, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}

	if point != nil {
		resolved, err := point.Resolved()
		if err != nil {
			return nil, err
		}
		for k, v := range resolved {
			values[k] = v
		}
	}

	for k := range values {
		if env, ok := os.LookupEnv(k); ok {
			values[k] = env
		}
	}

	return &Table{values: values}, nil
}

// Lookup returns the value for key and whether it exists.
func (t *Table) Lookup(key string) (string, bool) {
	value, ok := t.values[key]
	return value, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.values)
}

// Substitute replaces {{name}} placeholders with table values in a single
// pass. A placeholder with no table entry is left byte-for-byte unchanged,
// and inserted values are never re-scanned.
func (t *Table) Substitute(text string) string {
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		if value, ok := t.values[name]; ok {
			return value
		}
		return match
	})
}

// Resolve runs the environment pass followed by placeholder substitution.
func (t *Table) Resolve(text string) string {
	return t.Substitute(ExpandEnv(text))
}
