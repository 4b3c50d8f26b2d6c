package result

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestRenderSequence(t *testing.T) {
	type record struct {
		Name string `json:"name"`
	}
	items := []record{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}

	w := httptest.NewRecorder()
	if err := Render(context.Background(), w, Sequence{Items: items}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if w.Code != 200 {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var decoded []record
	if errUnmarshal := json.Unmarshal(w.Body.Bytes(), &decoded); errUnmarshal != nil {
		t.Fatalf("decode body: %v", errUnmarshal)
	}
	if len(decoded) != 5 {
		t.Fatalf("expected 5 records, got %d", len(decoded))
	}
}

func TestRenderTextContentLength(t *testing.T) {
	body := "čas: 2025-01-01T00:00:00Z"

	w := httptest.NewRecorder()
	if err := Render(context.Background(), w, TextString("text/html", body)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	declared, errParse := strconv.Atoi(w.Header().Get("Content-Length"))
	if errParse != nil {
		t.Fatalf("parse content length: %v", errParse)
	}
	if declared != len([]byte(body)) {
		t.Fatalf("expected content length %d, got %d", len([]byte(body)), declared)
	}
	if got := w.Body.String(); got != body {
		t.Fatalf("body round trip failed: %q", got)
	}
}

func TestRenderStreamHeadersBeforeBody(t *testing.T) {
	headerAtWrite := ""
	res := Stream{
		ContentType: "image/jpeg",
		Headers:     map[string]string{"Cache-Control": "public, max-age=86400"},
	}

	w := httptest.NewRecorder()
	res.WriteBody = func(_ context.Context, sink io.Writer) error {
		headerAtWrite = w.Header().Get("Cache-Control")
		_, errWrite := sink.Write([]byte{0xff, 0xd8})
		return errWrite
	}
	if err := Render(context.Background(), w, res); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if headerAtWrite != "public, max-age=86400" {
		t.Fatalf("headers not set before body write, got %q", headerAtWrite)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if w.Body.Len() != 2 {
		t.Fatalf("expected 2 body bytes, got %d", w.Body.Len())
	}
}

func TestRenderError(t *testing.T) {
	w := httptest.NewRecorder()
	if err := Render(context.Background(), w, NewError(400, "Bozkov is not a rum")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if w.Code != 400 {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if got := w.Body.String(); got != "Bozkov is not a rum" {
		t.Fatalf("unexpected body %q", got)
	}
}
