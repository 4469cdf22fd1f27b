package body_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/adamwoolhether/zapflux/body"
	"github.com/google/go-cmp/cmp"
)

func TestEncoder_Empty(t *testing.T) {
	enc := body.NewEncoder(1)

	testCases := []struct {
		name   string
		body   body.Body
		ct     string
		expCT  string
		expLen int64
	}{
		{name: "nil body", body: nil, expCT: body.ContentTypeJSON},
		{name: "empty body", body: body.Empty(), expCT: body.ContentTypeJSON},
		{name: "caller content type", body: body.Empty(), ct: "text/csv", expCT: "text/csv"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := enc.Encode(t.Context(), tc.body, tc.ct)
			if err != nil {
				t.Fatalf("exp nil err; got: %v", err)
			}
			if got.Length != 0 || len(got.Data) != 0 {
				t.Errorf("exp zero length; got %d bytes", got.Length)
			}
			if got.ContentType != tc.expCT {
				t.Errorf("exp content type %q; got %q", tc.expCT, got.ContentType)
			}
		})
	}
}

func TestEncoder_JSONRoundTrip(t *testing.T) {
	type item struct {
		Name  string   `json:"name"`
		Count int      `json:"count"`
		Tags  []string `json:"tags"`
	}
	in := item{Name: "widget", Count: 3, Tags: []string{"a", "b"}}

	got, err := body.NewEncoder(2).Encode(t.Context(), body.JSON(in), "")
	if err != nil {
		t.Fatalf("exp nil err; got: %v", err)
	}

	if got.ContentType != body.ContentTypeJSON {
		t.Errorf("exp content type %q; got %q", body.ContentTypeJSON, got.ContentType)
	}
	if got.Length != int64(len(got.Data)) {
		t.Errorf("declared length %d does not match data %d", got.Length, len(got.Data))
	}

	var out item
	if err := json.Unmarshal(got.Data, &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncoder_FormRoundTrip(t *testing.T) {
	in := map[string]any{
		"name":   "Jane Doe & co",
		"age":    42,
		"ratio":  0.5,
		"active": true,
		"emoji":  "✓/?=",
	}

	got, err := body.NewEncoder(1).Encode(t.Context(), body.Form(in), "")
	if err != nil {
		t.Fatalf("exp nil err; got: %v", err)
	}
	if got.ContentType != body.ContentTypeForm {
		t.Errorf("exp content type %q; got %q", body.ContentTypeForm, got.ContentType)
	}

	values, err := url.ParseQuery(string(got.Data))
	if err != nil {
		t.Fatalf("parsing form: %v", err)
	}

	exp := map[string]string{
		"name":   "Jane Doe & co",
		"age":    "42",
		"ratio":  "0.5",
		"active": "true",
		"emoji":  "✓/?=",
	}
	gotMap := make(map[string]string, len(values))
	for k := range values {
		gotMap[k] = values.Get(k)
	}
	if diff := cmp.Diff(exp, gotMap); diff != "" {
		t.Errorf("form mismatch (-want +got):\n%s", diff)
	}

	if !strings.Contains(string(got.Data), "&") {
		t.Errorf("exp pairs joined with &; got %q", got.Data)
	}
}

func TestEncoder_MultipartRoundTrip(t *testing.T) {
	file := bytes.Repeat([]byte("0123456789"), 5000)
	b := body.Multipart(
		body.Field("title", `quarterly "report"`),
		body.File("upload", "data.bin", "", file),
	)

	got, err := body.NewEncoder(1).Encode(t.Context(), b, "application/json")
	if err != nil {
		t.Fatalf("exp nil err; got: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(got.ContentType)
	if err != nil {
		t.Fatalf("parsing content type %q: %v", got.ContentType, err)
	}
	if mediaType != body.ContentTypeMultipart {
		t.Fatalf("override must not replace multipart type; got %q", mediaType)
	}
	if params["boundary"] == "" {
		t.Fatal("exp generated boundary")
	}
	if got.Length != int64(len(got.Data)) {
		t.Errorf("declared length %d does not match data %d", got.Length, len(got.Data))
	}

	mr := multipart.NewReader(bytes.NewReader(got.Data), params["boundary"])

	p, err := mr.NextPart()
	if err != nil {
		t.Fatalf("reading field part: %v", err)
	}
	val, _ := io.ReadAll(p)
	if p.FormName() != "title" || string(val) != `quarterly "report"` {
		t.Errorf("unexpected field part %q=%q", p.FormName(), val)
	}

	p, err = mr.NextPart()
	if err != nil {
		t.Fatalf("reading file part: %v", err)
	}
	data, _ := io.ReadAll(p)
	if p.FileName() != "data.bin" {
		t.Errorf("exp filename data.bin; got %q", p.FileName())
	}
	if ct := p.Header.Get("Content-Type"); ct != body.ContentTypeOctet {
		t.Errorf("exp file content type %q; got %q", body.ContentTypeOctet, ct)
	}
	if !bytes.Equal(data, file) {
		t.Errorf("file part mismatch: exp %d bytes, got %d", len(file), len(data))
	}

	if _, err := mr.NextPart(); !errors.Is(err, io.EOF) {
		t.Errorf("exp EOF after two parts; got: %v", err)
	}
}

func TestEncoder_TextAndRaw(t *testing.T) {
	enc := body.NewEncoder(1)

	text, err := enc.Encode(t.Context(), body.Text("hello"), "")
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if string(text.Data) != "hello" || text.ContentType != body.ContentTypeText {
		t.Errorf("unexpected text encoding: %+v", text)
	}

	raw, err := enc.Encode(t.Context(), body.Raw([]byte{0x1, 0x2}, ""), "")
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if raw.Length != 2 || raw.ContentType != body.ContentTypeOctet {
		t.Errorf("unexpected raw encoding: %+v", raw)
	}

	override, err := enc.Encode(t.Context(), body.Text("a,b"), "text/csv")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if override.ContentType != "text/csv" {
		t.Errorf("exp override content type; got %q", override.ContentType)
	}
}

func TestEncoder_Unsupported(t *testing.T) {
	testCases := []struct {
		name string
		body body.Body
	}{
		{name: "json channel", body: body.JSON(make(chan int))},
		{name: "form nested map", body: body.Form(map[string]any{"nested": map[string]string{}})},
		{name: "multipart unnamed part", body: body.Multipart(body.Part{Data: []byte("x")})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := body.NewEncoder(1).Encode(t.Context(), tc.body, "")
			if !errors.Is(err, body.ErrUnsupported) {
				t.Errorf("exp ErrUnsupported; got: %v", err)
			}
		})
	}
}

func TestEncoder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := body.NewEncoder(1).Encode(ctx, body.JSON(map[string]int{"a": 1}), "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("exp context.Canceled; got: %v", err)
	}
}

func TestEncoder_ConcurrentHeavy(t *testing.T) {
	enc := body.NewEncoder(2)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = enc.Encode(t.Context(), body.JSON([]int{idx, idx}), "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("encode %d: %v", i, err)
		}
	}
}
