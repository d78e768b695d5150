package request

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrInvalidMethod        = errors.New("invalid HTTP method")
)

// Method is one of the request methods the server understands.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodOptions Method = "OPTIONS"
	MethodHead    Method = "HEAD"
)

// ParseMethod checks s against the supported method set. Matching is exact.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodOptions, MethodHead:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
}

func (m Method) String() string {
	return string(m)
}

type RequestLine struct {
	Method  Method
	Path    string
	Version string
}

// ParseRequestLine parses: METHOD PATH VERSION (CRLF already stripped).
// The line is split on single spaces and must yield exactly three tokens.
func ParseRequestLine(line string) (RequestLine, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return RequestLine{}, ErrMalformedRequestLine
	}

	method, err := ParseMethod(parts[0])
	if err != nil {
		return RequestLine{}, err
	}

	return RequestLine{
		Method:  method,
		Path:    parts[1],
		Version: parts[2],
	}, nil
}

func (rl RequestLine) String() string {
	return string(rl.Method) + " " + rl.Path + " " + rl.Version
}
