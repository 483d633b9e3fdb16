package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// MessageOutput receives complete http exchanges, one per id.
type MessageOutput interface {
	Write(id string, contents string)
}

// FilesystemOutput writes every exchange to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput empties (or creates) dir and returns an output writing into it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

// MessageDump writes the request and response of every exchange made by instrumented
// clients to its output, exchanges are numbered across all clients sharing the dump.
type MessageDump struct {
	output  MessageOutput
	counter atomic.Uint64
}

func NewMessageDump(output MessageOutput) *MessageDump {
	return &MessageDump{output: output}
}

func (d *MessageDump) Instrument(client *resty.Client) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(d.counter.Add(1), 10)
		d.output.Write(id, formatHttpMessage(res))
		return nil
	})
}

func formatRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
// 5: response status
// 6: response headers in ("Key: Value" format)
// 7: response body
const messageInfoTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%d

%s

%s`

func formatHttpMessage(res *resty.Response) string {
	var requestHeaders, requestBody string
	if res.Request.RawRequest != nil {
		requestHeaders = formatHeaders(res.Request.RawRequest.Header)
		requestBody = formatRequestBody(res.Request.RawRequest)
	}

	return fmt.Sprintf(
		messageInfoTemplate,

		res.Request.Method, res.Request.URL,
		requestHeaders,
		requestBody,

		res.StatusCode(),
		formatHeaders(res.Header()),
		res.String(),
	)
}
