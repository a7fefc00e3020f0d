package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
)

// Content types sent to the gateway.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeBinary = "application/octet-stream"
	ContentTypePDF    = "application/pdf"
)

// Payload is a request body together with its content type. The zero value
// is an empty JSON call.
type Payload struct {
	contentType string
	body        []byte
	binary      bool
	err         error
}

// JSONPayload encodes v as JSON. A json.RawMessage or []byte is sent as is.
func JSONPayload(v any) Payload {
	switch raw := v.(type) {
	case nil:
		return Payload{}
	case json.RawMessage:
		return Payload{contentType: ContentTypeJSON, body: raw}
	case []byte:
		return Payload{contentType: ContentTypeJSON, body: raw}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Payload{err: fmt.Errorf("encode JSON payload: %w", err)}
	}
	return Payload{contentType: ContentTypeJSON, body: data}
}

// BinaryPayload sends data as application/octet-stream.
func BinaryPayload(data []byte) Payload {
	return Payload{contentType: ContentTypeBinary, body: data, binary: true}
}

// PDFPayload sends data as application/pdf.
func PDFPayload(data []byte) Payload {
	return Payload{contentType: ContentTypePDF, body: data, binary: true}
}

// MultipartPayload sends data as a single file part of a multipart form.
func MultipartPayload(field, filename string, data []byte) Payload {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return Payload{err: fmt.Errorf("create multipart part: %w", err)}
	}
	if _, err := part.Write(data); err != nil {
		return Payload{err: fmt.Errorf("write multipart part: %w", err)}
	}
	if err := w.Close(); err != nil {
		return Payload{err: fmt.Errorf("close multipart body: %w", err)}
	}
	return Payload{contentType: w.FormDataContentType(), body: buf.Bytes(), binary: true}
}

// ContentType returns the Content-Type header value.
func (p Payload) ContentType() string {
	if p.contentType == "" {
		return ContentTypeJSON
	}
	return p.contentType
}

// Binary reports whether the payload uses the longer file-upload timeout.
func (p Payload) Binary() bool {
	return p.binary
}

// Len returns the body size in bytes.
func (p Payload) Len() int {
	return len(p.body)
}
