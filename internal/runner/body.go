package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/darmado/postman2burp/internal/collection"
)

// serializedBody is a request body ready for dispatch.
type serializedBody struct {
	content     string
	contentType string
}

// serializeBody renders a descriptor body with placeholders resolved.
// Raw bodies that parse as JSON are labeled application/json; urlencoded
// bodies go out as a form; formdata is limited to simple text fields.
func serializeBody(body *collection.Body, resolve func(string) string) (*serializedBody, error) {
	if body == nil {
		return nil, nil
	}

	switch body.Mode {
	case "", "raw":
		if body.Raw == "" {
			return nil, nil
		}
		content := resolve(body.Raw)
		contentType := "text/plain"
		if json.Valid([]byte(content)) {
			contentType = "application/json"
		}
		return &serializedBody{content: content, contentType: contentType}, nil

	case "urlencoded":
		form := url.Values{}
		for _, p := range body.URLEncoded {
			if p.Disabled {
				continue
			}
			form.Set(resolve(p.Key), resolve(p.Value))
		}
		return &serializedBody{
			content:     form.Encode(),
			contentType: "application/x-www-form-urlencoded",
		}, nil

	case "formdata":
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		for _, p := range body.FormData {
			if p.Disabled || p.Type == "file" {
				continue
			}
			if err := writer.WriteField(resolve(p.Key), resolve(p.Value)); err != nil {
				return nil, fmt.Errorf("writing form field %q: %w", p.Key, err)
			}
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
		return &serializedBody{
			content:     buf.String(),
			contentType: writer.FormDataContentType(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported body mode %q", body.Mode)
	}
}

func (b *serializedBody) reader() *strings.Reader {
	return strings.NewReader(b.content)
}
