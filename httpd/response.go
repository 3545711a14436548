package httpd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Status codes the router produces.
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

// DefaultContentType is used when a Response leaves ContentType empty.
const DefaultContentType = "text/plain"

// HeaderField is one extra response header. Order is preserved on the wire.
type HeaderField struct {
	Name  string
	Value string
}

// Response is written back as a complete HTTP/1.1 message, after which the
// connection is closed.
type Response struct {
	Status      int
	ContentType string
	Header      []HeaderField
	Body        []byte
}

// Text builds a text/plain response.
func Text(status int, body string) *Response {
	return &Response{Status: status, ContentType: DefaultContentType, Body: []byte(body)}
}

// StatusText returns the reason phrase for the status codes this server
// emits, or "Unknown".
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}

// managed headers are always derived from the Response itself.
func managed(name string) bool {
	switch strings.ToLower(name) {
	case "content-type", "content-length", "connection":
		return true
	}
	return false
}

// WriteResponse serializes resp to w.
func WriteResponse(w io.Writer, resp *Response) error {
	bw := bufio.NewWriter(w)

	status := resp.Status
	if status == 0 {
		status = StatusOK
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", status, StatusText(status))
	fmt.Fprintf(bw, "Content-Type: %s\r\n", contentType)
	bw.WriteString("Content-Length: " + strconv.Itoa(len(resp.Body)) + "\r\n")
	bw.WriteString("Connection: close\r\n")
	for _, h := range resp.Header {
		if h.Name == "" || managed(h.Name) {
			continue
		}
		fmt.Fprintf(bw, "%s: %s\r\n", h.Name, h.Value)
	}
	bw.WriteString("\r\n")
	bw.Write(resp.Body)
	return bw.Flush()
}
