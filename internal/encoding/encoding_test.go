package encoding

import (
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("accepts all known encodings", func(t *testing.T) {
		for _, name := range Names() {
			assert.NoError(t, Validate(name))
		}
	})

	t.Run("rejects unknown encoding", func(t *testing.T) {
		err := Validate("rot13")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownEncoding)
	})
}

func TestApply(t *testing.T) {
	t.Run("url encodes special characters", func(t *testing.T) {
		result, err := Apply("url", "A&B", 1)
		require.NoError(t, err)
		assert.Equal(t, "A%26B", result)
	})

	t.Run("two url iterations encode the percent sign", func(t *testing.T) {
		result, err := Apply("url", "A&B", 2)
		require.NoError(t, err)
		assert.Equal(t, "A%2526B", result)
	})

	t.Run("url leaves path separators alone", func(t *testing.T) {
		result, err := Apply("url", "v1/users", 1)
		require.NoError(t, err)
		assert.Equal(t, "v1/users", result)
	})

	t.Run("double_url equals two url passes", func(t *testing.T) {
		once, err := Apply("url", "a b", 2)
		require.NoError(t, err)
		double, err := Apply("double_url", "a b", 1)
		require.NoError(t, err)
		assert.Equal(t, once, double)
	})

	t.Run("iterations below one default to one", func(t *testing.T) {
		result, err := Apply("base64", "x", 0)
		require.NoError(t, err)
		assert.Equal(t, "eA==", result)
	})

	t.Run("unknown encoding fails", func(t *testing.T) {
		_, err := Apply("nope", "x", 1)
		assert.ErrorIs(t, err, ErrUnknownEncoding)
	})
}

func TestHTMLEncode(t *testing.T) {
	assert.Equal(t,
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		HTMLEncode("<script>alert(1)</script>"))
	assert.Equal(t, "&quot;a&#x27;b&amp;", HTMLEncode(`"a'b&`))
}

func TestXMLEncode(t *testing.T) {
	assert.Equal(t, "&lt;a&gt; &amp; &quot;b&quot; &apos;c&apos;", XMLEncode(`<a> & "b" 'c'`))
}

func TestDecodableEncodingsRoundTrip(t *testing.T) {
	inputs := []string{"hello", "a b&c=d", "payload with 'quotes'"}

	t.Run("base64", func(t *testing.T) {
		for _, in := range inputs {
			decoded, err := base64.StdEncoding.DecodeString(Base64Encode(in))
			require.NoError(t, err)
			assert.Equal(t, in, string(decoded))
		}
	})

	t.Run("url", func(t *testing.T) {
		for _, in := range inputs {
			decoded, err := url.QueryUnescape(URLEncode(in))
			require.NoError(t, err)
			assert.Equal(t, in, decoded)
		}
	})
}

func TestEscapeEncodings(t *testing.T) {
	t.Run("unicode escapes only non-ascii", func(t *testing.T) {
		assert.Equal(t, "caf\\u00e9", UnicodeEscape("café"))
		assert.Equal(t, "plain", UnicodeEscape("plain"))
	})

	t.Run("hex escapes every rune", func(t *testing.T) {
		assert.Equal(t, `\x41\x42`, HexEscape("AB"))
	})

	t.Run("octal escapes every rune", func(t *testing.T) {
		assert.Equal(t, `\101\102`, OctalEscape("AB"))
	})

	t.Run("sql char expression", func(t *testing.T) {
		assert.Equal(t, "CHAR(65,66,67)", SQLCharEncode("ABC"))
	})

	t.Run("js escape handles quotes and control chars", func(t *testing.T) {
		assert.Equal(t, `a\'b\"c\\d\ne`, JSEscape("a'b\"c\\d\ne"))
	})

	t.Run("css escape emits trailing space", func(t *testing.T) {
		assert.Equal(t, `caf\e9 `, CSSEscape("café"))
	})
}
