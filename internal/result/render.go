package result

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Render writes status, headers, and body for res to w. All headers are set
// before the first body byte; mutating a header afterwards is a programming
// error, not a recoverable condition. The returned error reports body-write
// failures (a stream aborted mid-body cannot be patched over with a late
// status change).
func Render(ctx context.Context, w http.ResponseWriter, res Result) error {
	switch v := res.(type) {
	case Sequence:
		return renderSequence(w, v)
	case Stream:
		return renderStream(ctx, w, v)
	case Text:
		return renderText(w, v)
	case Error:
		return renderError(w, v)
	default:
		return fmt.Errorf("unknown result variant %T", res)
	}
}

func renderSequence(w http.ResponseWriter, res Sequence) error {
	body, errMarshal := json.Marshal(res.Items)
	if errMarshal != nil {
		return fmt.Errorf("encode sequence: %w", errMarshal)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, errWrite := w.Write(body)
	return errWrite
}

func renderStream(ctx context.Context, w http.ResponseWriter, res Stream) error {
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	for name, value := range res.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(http.StatusOK)
	if res.WriteBody == nil {
		return nil
	}
	return res.WriteBody(ctx, w)
}

func renderText(w http.ResponseWriter, res Text) error {
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Body)))
	w.WriteHeader(http.StatusOK)
	_, errWrite := w.Write(res.Body)
	return errWrite
}

func renderError(w http.ResponseWriter, res Error) error {
	message := res.Message
	if message == "" {
		message = http.StatusText(res.Status)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(message)))
	w.WriteHeader(res.Status)
	_, errWrite := fmt.Fprint(w, message)
	return errWrite
}
