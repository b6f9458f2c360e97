package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmado/postman2burp/internal/encoding"
)

func TestExtract(t *testing.T) {
	t.Run("finds placeholders in order without duplicates", func(t *testing.T) {
		names := Extract("https://{{host}}/{{path}}?a={{host}}&b={{token}}")
		assert.Equal(t, []string{"host", "path", "token"}, names)
	})

	t.Run("is deterministic", func(t *testing.T) {
		text := "{{b}} {{a}} {{b}} {{c}}"
		assert.Equal(t, Extract(text), Extract(text))
	})

	t.Run("excludes postman builtins", func(t *testing.T) {
		names := Extract("{{$uuid}} {{real}} {{$timestamp}}")
		assert.Equal(t, []string{"real"}, names)
	})

	t.Run("tolerates surrounding whitespace", func(t *testing.T) {
		names := Extract("{{ padded }}")
		assert.Equal(t, []string{"padded"}, names)
	})

	t.Run("empty text yields empty set", func(t *testing.T) {
		assert.Empty(t, Extract("no placeholders here"))
	})
}

func TestUnion(t *testing.T) {
	merged := Union([]string{"a", "b"}, []string{"b", "c"}, nil, []string{"a"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)
}

func TestSubstitute(t *testing.T) {
	table := NewTable(map[string]string{
		"endpoint": "v1/users",
		"nested":   "{{inner}}",
	})

	t.Run("replaces known placeholders", func(t *testing.T) {
		result := table.Substitute("https://example.com/{{endpoint}}")
		assert.Equal(t, "https://example.com/v1/users", result)
	})

	t.Run("leaves unknown placeholders untouched", func(t *testing.T) {
		result := table.Substitute("https://example.com/{{missing}}")
		assert.Equal(t, "https://example.com/{{missing}}", result)
	})

	t.Run("is single pass", func(t *testing.T) {
		result := table.Substitute("value: {{nested}}")
		assert.Equal(t, "value: {{inner}}", result)
	})

	t.Run("fully resolved text re-extracts to the empty set", func(t *testing.T) {
		result := table.Substitute("{{endpoint}} and {{endpoint}}")
		assert.Empty(t, Extract(result))
	})
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("P2B_TEST_TOKEN", "secret-token")

	t.Run("resolves set variables", func(t *testing.T) {
		assert.Equal(t, "Bearer secret-token", ExpandEnv("Bearer ${P2B_TEST_TOKEN}"))
	})

	t.Run("leaves unset variables untouched", func(t *testing.T) {
		assert.Equal(t, "${P2B_TEST_UNSET}", ExpandEnv("${P2B_TEST_UNSET}"))
	})
}

func TestBuild(t *testing.T) {
	t.Run("insertion point overrides defaults", func(t *testing.T) {
		point, err := ParseInsertionPoint([]byte(`{
			"values": [{"key": "endpoint", "value": "v2/users", "enabled": true}]
		}`))
		require.NoError(t, err)

		table, err := Build(map[string]string{"endpoint": "v1/users", "host": "example.com"}, point)
		require.NoError(t, err)

		value, ok := table.Lookup("endpoint")
		require.True(t, ok)
		assert.Equal(t, "v2/users", value)

		value, ok = table.Lookup("host")
		require.True(t, ok)
		assert.Equal(t, "example.com", value)
	})

	t.Run("environment beats both sources", func(t *testing.T) {
		t.Setenv("P2B_PRECEDENCE_KEY", "from-env")

		point, err := ParseInsertionPoint([]byte(`{
			"values": [{"key": "P2B_PRECEDENCE_KEY", "value": "from-point"}]
		}`))
		require.NoError(t, err)

		table, err := Build(map[string]string{"P2B_PRECEDENCE_KEY": "from-defaults"}, point)
		require.NoError(t, err)

		value, _ := table.Lookup("P2B_PRECEDENCE_KEY")
		assert.Equal(t, "from-env", value)
	})

	t.Run("nil insertion point keeps defaults", func(t *testing.T) {
		table, err := Build(map[string]string{"k": "v"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())
	})
}

func TestInsertionPoint(t *testing.T) {
	t.Run("disabled entries are excluded", func(t *testing.T) {
		point, err := ParseInsertionPoint([]byte(`{
			"values": [
				{"key": "on", "value": "1", "enabled": true},
				{"key": "off", "value": "2", "enabled": false},
				{"key": "implicit", "value": "3"}
			]
		}`))
		require.NoError(t, err)

		resolved, err := point.Resolved()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"on": "1", "implicit": "3"}, resolved)
	})

	t.Run("accepts the variables array name", func(t *testing.T) {
		point, err := ParseInsertionPoint([]byte(`{
			"variables": [{"key": "k", "value": "v"}]
		}`))
		require.NoError(t, err)

		resolved, err := point.Resolved()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"k": "v"}, resolved)
	})

	t.Run("applies encodings with iterations", func(t *testing.T) {
		point, err := ParseInsertionPoint([]byte(`{
			"values": [{"key": "payload", "value": "A&B", "encoding": "url", "encoding_iterations": 2}]
		}`))
		require.NoError(t, err)

		resolved, err := point.Resolved()
		require.NoError(t, err)
		assert.Equal(t, "A%2526B", resolved["payload"])
	})

	t.Run("accepts iterations as a numeric string", func(t *testing.T) {
		point, err := ParseInsertionPoint([]byte(`{
			"values": [{"key": "payload", "value": "A&B", "encoding": "url", "encoding_iterations": "2"}]
		}`))
		require.NoError(t, err)

		resolved, err := point.Resolved()
		require.NoError(t, err)
		assert.Equal(t, "A%2526B", resolved["payload"])
	})

	t.Run("base_url is never encoded", func(t *testing.T) {
		point, err := ParseInsertionPoint([]byte(`{
			"values": [{"key": "base_url", "value": "https://example.com", "encoding": "base64"}]
		}`))
		require.NoError(t, err)

		resolved, err := point.Resolved()
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", resolved["base_url"])
	})

	t.Run("unknown encoding fails at parse time naming the key", func(t *testing.T) {
		_, err := ParseInsertionPoint([]byte(`{
			"values": [{"key": "payload", "value": "x", "encoding": "rot13"}]
		}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, encoding.ErrUnknownEncoding)
		assert.Contains(t, err.Error(), "payload")
	})

	t.Run("invalid JSON fails", func(t *testing.T) {
		_, err := ParseInsertionPoint([]byte(`{broken`))
		assert.ErrorIs(t, err, ErrParse)
	})
}
