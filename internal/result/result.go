// Package result defines the polymorphic response values handlers and
// filters produce, and the renderer that writes them to the wire. Each value
// is consumed exactly once.
package result

import (
	"context"
	"io"
	"net/http"
)

// Result is a sealed set of response variants.
type Result interface {
	kind() string
}

// Sequence is an ordered list of records serialized as JSON with status 200.
type Sequence struct {
	Items any
}

// Stream is a binary body produced incrementally by WriteBody. Headers are
// fully written before WriteBody runs; no buffering layer is interposed.
type Stream struct {
	ContentType string
	Headers     map[string]string
	WriteBody   func(ctx context.Context, sink io.Writer) error
}

// Text is raw byte content with an explicit content type. Content-Length is
// set to the exact byte count.
type Text struct {
	ContentType string
	Body        []byte
}

// Error carries a status code and a short plain-text reason. The message is
// user-visible; internals never belong here.
type Error struct {
	Status  int
	Message string
}

func (Sequence) kind() string { return "sequence" }
func (Stream) kind() string   { return "stream" }
func (Text) kind() string     { return "text" }
func (Error) kind() string    { return "error" }

// TextString builds a Text result from a string body.
func TextString(contentType, body string) Text {
	return Text{ContentType: contentType, Body: []byte(body)}
}

// NewError builds an Error result, defaulting the message to the standard
// status text.
func NewError(status int, message string) Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return Error{Status: status, Message: message}
}
