package httpd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// ErrMalformedRequestLine is returned when the request line has fewer than
// three space separated fields.
var ErrMalformedRequestLine = errors.New("malformed request line")

// Header holds request headers keyed by lower-cased name.
type Header map[string]string

// Get returns the value for name, matched case-insensitively.
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Request is one parsed HTTP/1.1 request.
type Request struct {
	Method  string
	Path    string
	Version string
	Header  Header
	Body    []byte

	LocalAddr  net.Addr
	RemoteAddr net.Addr
}

// ReadRequest parses a request from r. Lines may end in CRLF or bare LF.
// A header line without a colon, or with an empty name, is ignored; a
// repeated header keeps the last value. The body is read only when
// Content-Length parses to a positive 32-bit integer; the buffer grows with
// the bytes actually received, not with the declared length.
func ReadRequest(r *bufio.Reader) (*Request, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("read request line: %w", err)
	}

	fields := strings.Split(line, " ")
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRequestLine, line)
	}
	req := &Request{
		Method:  fields[0],
		Path:    fields[1],
		Version: fields[2],
		Header:  make(Header),
	}

	for {
		line, err := readLine(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read headers: %w", err)
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		req.Header[name] = strings.TrimSpace(value)
	}

	if n, err := strconv.ParseInt(req.Header.Get("content-length"), 10, 32); err == nil && n > 0 {
		var body bytes.Buffer
		if _, err := io.CopyN(&body, r, n); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read body: %w", err)
		}
		req.Body = body.Bytes()
	}
	return req, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
