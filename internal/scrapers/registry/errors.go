package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrMissingConfiguration means the integration is not set up, retrying will not help.
	ErrMissingConfiguration = errors.New("registry: missing configuration")
	// ErrRequestFailed covers transport faults, unexpected statuses and missing session state.
	ErrRequestFailed = errors.New("registry: request failed")
	// ErrInvalidResponse means a response body could not be read as a JSON object.
	ErrInvalidResponse = errors.New("registry: invalid response")
)

// Error is the error returned by every operation of this package, match it against the
// sentinel errors with errors.Is.
//
// Uri, Body and ContentType are diagnostics for logs, they are never part of Error().
type Error struct {
	Kind        error
	Message     string
	Uri         string
	Status      int
	Body        string
	ContentType string
	Cause       error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause.Error())
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

const maxBodySummary = 512

// BodySummary returns the response body reduced to something that fits in a log line,
// html pages are reduced to their text.
func (e *Error) BodySummary() string {
	return summarizeBody(e.Body, e.ContentType)
}

func summarizeBody(body, contentType string) string {
	text := body
	trimmed := strings.TrimSpace(body)
	if strings.Contains(contentType, "html") || strings.HasPrefix(trimmed, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxBodySummary {
		text = text[:maxBodySummary] + "..."
	}
	return text
}
