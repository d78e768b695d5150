package request

import (
	"bufio"
	"io"
	"strings"

	"github.com/Brownie44l1/rawhttp/internal/headers"
)

// Request is one parsed HTTP message. It is owned by the connection that
// read it and must not be modified once handed to handlers.
type Request struct {
	Line    RequestLine
	Headers *headers.Headers
	Body    []byte

	// Wildcard is the part of the path matched by a trailing "*" route,
	// without its leading slash. Empty for exact routes.
	Wildcard string
}

// RequestFromReader parses a single request from reader using DefaultLimits.
func RequestFromReader(reader io.Reader) (*Request, error) {
	br, ok := reader.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(reader)
	}
	return Read(br, DefaultLimits())
}

func (r *Request) Method() Method {
	return r.Line.Method
}

// Path returns the raw request target as it appeared on the wire.
func (r *Request) Path() string {
	return r.Line.Path
}

func (r *Request) Version() string {
	return r.Line.Version
}

// Target returns the path without its query string.
func (r *Request) Target() string {
	if idx := strings.IndexByte(r.Line.Path, '?'); idx != -1 {
		return r.Line.Path[:idx]
	}
	return r.Line.Path
}

// Header returns the value of key (exact match) or "".
func (r *Request) Header(key string) string {
	return r.Headers.Value(key)
}

// WithWildcard returns a shallow copy of r carrying the wildcard remainder.
func (r *Request) WithWildcard(wildcard string) *Request {
	c := *r
	c.Wildcard = wildcard
	return &c
}
