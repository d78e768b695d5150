package request

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Brownie44l1/rawhttp/internal/headers"
)

// Size limits (DoS protection)
const (
	maxLineSize    = 8192     // 8KB per request or header line
	maxHeaderSize  = 1 << 20  // 1MB total headers
	maxHeaderLines = 1000     // Max number of header lines
	maxBodySize    = 10 << 20 // 10MB body
)

var (
	ErrLineTooLong    = errors.New("line too long")
	ErrBareLineFeed   = errors.New("line not terminated by CRLF")
	ErrHeaderTooLarge = errors.New("headers too large")
	ErrTooManyHeaders = errors.New("too many header lines")
	ErrBodyTooLarge   = errors.New("body too large")
	ErrTruncatedBody  = errors.New("truncated body")
	crlf              = []byte("\r\n")
)

// Limits bounds how much a single request may make the parser buffer.
// Zero fields fall back to the defaults.
type Limits struct {
	MaxLineBytes   int
	MaxHeaderBytes int
	MaxHeaderLines int
	MaxBodyBytes   int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxLineBytes:   maxLineSize,
		MaxHeaderBytes: maxHeaderSize,
		MaxHeaderLines: maxHeaderLines,
		MaxBodyBytes:   maxBodySize,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxLineBytes <= 0 {
		l.MaxLineBytes = d.MaxLineBytes
	}
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if l.MaxHeaderLines <= 0 {
		l.MaxHeaderLines = d.MaxHeaderLines
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = d.MaxBodyBytes
	}
	return l
}

// ParseError reports a request that could not be read. Line is set when the
// request line itself was readable.
type ParseError struct {
	Line *RequestLine
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the client is still worth answering: the
// request line was understood and the failure is a limit violation rather
// than a broken or vanished stream.
func (e *ParseError) Recoverable() bool {
	if e.Line == nil {
		return false
	}
	return errors.Is(e.Err, ErrLineTooLong) ||
		errors.Is(e.Err, ErrBareLineFeed) ||
		errors.Is(e.Err, ErrHeaderTooLarge) ||
		errors.Is(e.Err, ErrTooManyHeaders) ||
		errors.Is(e.Err, ErrBodyTooLarge)
}

// Read parses one request from reader: request line, headers up to the
// blank line, then exactly Content-Length bytes of body.
func Read(reader *bufio.Reader, limits Limits) (*Request, error) {
	limits = limits.withDefaults()

	line, err := readLine(reader, limits.MaxLineBytes)
	if err != nil {
		return nil, &ParseError{Msg: "read request line", Err: err}
	}

	rl, err := ParseRequestLine(string(line))
	if err != nil {
		return nil, &ParseError{Msg: "invalid request line", Err: err}
	}

	req := &Request{
		Line:    rl,
		Headers: headers.NewHeaders(),
	}

	if err := readHeaders(reader, req.Headers, limits); err != nil {
		return nil, &ParseError{Line: &req.Line, Msg: "read headers", Err: err}
	}

	body, err := readBody(reader, contentLength(req.Headers), limits.MaxBodyBytes)
	if err != nil {
		return nil, &ParseError{Line: &req.Line, Msg: "read body", Err: err}
	}
	req.Body = body

	return req, nil
}

// readHeaders consumes header lines until the empty line.
func readHeaders(reader *bufio.Reader, h *headers.Headers, limits Limits) error {
	total := 0
	lines := 0

	for {
		line, err := readLine(reader, limits.MaxLineBytes)
		if err != nil {
			return err
		}

		// Empty line marks end of headers
		if len(line) == 0 {
			return nil
		}

		lines++
		if lines > limits.MaxHeaderLines {
			return ErrTooManyHeaders
		}

		total += len(line) + len(crlf)
		if total > limits.MaxHeaderBytes {
			return ErrHeaderTooLarge
		}

		// Lines without ": " are not an error, just ignored
		h.ParseLine(line)
	}
}

// readLine returns the next CRLF-terminated line without its terminator.
func readLine(reader *bufio.Reader, max int) ([]byte, error) {
	var line []byte

	for {
		chunk, err := reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > max+len(crlf) {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, max)
		}

		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if !bytes.HasSuffix(line, crlf) {
		return nil, ErrBareLineFeed
	}
	return line[:len(line)-len(crlf)], nil
}
