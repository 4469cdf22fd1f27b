package body

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

// Part is a single multipart section: a plain field when Filename is
// empty, a file otherwise.
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// Field returns a plain form field part.
func Field(name, value string) Part {
	return Part{Name: name, Data: []byte(value)}
}

// File returns a file part. An empty contentType defaults to
// application/octet-stream.
func File(name, filename, contentType string, data []byte) Part {
	if contentType == "" {
		contentType = ContentTypeOctet
	}

	return Part{Name: name, Filename: filename, ContentType: contentType, Data: data}
}

type multipartBody struct {
	parts    []Part
	boundary string
}

// Multipart assembles parts into a multipart/form-data payload with a
// freshly generated boundary.
func Multipart(parts ...Part) Body {
	return multipartBody{
		parts:    parts,
		boundary: "zapflux-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

func (multipartBody) Kind() string { return "multipart" }
func (multipartBody) heavy() bool  { return true }

func (b multipartBody) contentType() string {
	return ContentTypeMultipart + "; boundary=" + b.boundary
}

// encode runs a length probe first so the buffer is sized once and the
// declared length is known before any payload byte is produced.
func (b multipartBody) encode() ([]byte, error) {
	var probe countingWriter
	if err := b.write(&probe); err != nil {
		return nil, fmt.Errorf("probing multipart length: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(int(probe.n))
	if err := b.write(&buf); err != nil {
		return nil, fmt.Errorf("writing multipart body: %w", err)
	}

	if int64(buf.Len()) != probe.n {
		return nil, fmt.Errorf("multipart length mismatch: probed %d, wrote %d", probe.n, buf.Len())
	}

	return buf.Bytes(), nil
}

func (b multipartBody) write(w io.Writer) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(b.boundary); err != nil {
		return fmt.Errorf("%w: boundary: %w", ErrUnsupported, err)
	}

	for _, p := range b.parts {
		if p.Name == "" {
			return fmt.Errorf("%w: multipart part without name", ErrUnsupported)
		}

		h := make(textproto.MIMEHeader)
		if p.Filename == "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(p.Name)))
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(p.Name), escapeQuotes(p.Filename)))
			h.Set("Content-Type", p.ContentType)
		}

		pw, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("creating part %q: %w", p.Name, err)
		}
		if _, err := pw.Write(p.Data); err != nil {
			return fmt.Errorf("writing part %q: %w", p.Name, err)
		}
	}

	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
