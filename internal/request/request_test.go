package request

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleGETRequest(t *testing.T) {
	data := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, MethodGet, req.Method())
	assert.Equal(t, "/index.html", req.Path())
	assert.Equal(t, "HTTP/1.1", req.Version())

	host, ok := req.Headers.Get("Host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
	assert.Len(t, req.Body, 0)
}

func TestPOSTWithContentLength(t *testing.T) {
	data := "POST /api/data HTTP/1.1\r\n" +
		"Host: api.example.com\r\n" +
		"Content-Length: 13\r\n" +
		"\r\n" +
		"Hello, World!"

	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, MethodPost, req.Method())
	assert.Equal(t, "/api/data", req.Path())
	assert.Equal(t, "Hello, World!", string(req.Body))
}

func TestHeadersKeepWireOrder(t *testing.T) {
	data := "GET / HTTP/1.1\r\n" +
		"User-Agent: test-client/1.0\r\n" +
		"Accept: */*\r\n" +
		"Host: example.com\r\n" +
		"\r\n"

	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, []string{"User-Agent", "Accept", "Host"}, headerKeys(req))
	assert.Equal(t, "test-client/1.0", req.Header("User-Agent"))
}

func headerKeys(req *Request) []string {
	var keys []string
	req.Headers.Each(func(key, _ string) { keys = append(keys, key) })
	return keys
}

func TestHeaderWithoutSeparatorIsDropped(t *testing.T) {
	data := "GET / HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"InvalidHeader\r\n" +
		"X-No-Space:value\r\n" +
		"\r\n"

	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, []string{"Host"}, headerKeys(req))
}

func TestContentLengthIsCaseSensitive(t *testing.T) {
	// lower-case key is not recognised, so the body stays unread
	data := "POST / HTTP/1.1\r\n" +
		"content-length: 5\r\n" +
		"\r\n" +
		"hello"

	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Empty(t, req.Body)
}

func TestInvalidContentLengthMeansNoBody(t *testing.T) {
	for _, cl := range []string{"abc", "-5", ""} {
		data := "POST / HTTP/1.1\r\n" +
			"Content-Length: " + cl + "\r\n" +
			"\r\n" +
			"hello"

		req, err := RequestFromReader(strings.NewReader(data))

		require.NoError(t, err, "Content-Length %q", cl)
		assert.Empty(t, req.Body, "Content-Length %q", cl)
	}
}

func TestBodyIsRawBytes(t *testing.T) {
	payload := string([]byte{0x00, 0xff, '\r', '\n', 0x7f})
	data := "POST /files/bin HTTP/1.1\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		payload

	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, []byte(payload), req.Body)
}

func TestInvalidMethod(t *testing.T) {
	data := "INVALID /path HTTP/1.1\r\nHost: example.com\r\n\r\n"
	_, err := RequestFromReader(strings.NewReader(data))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMethod)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Nil(t, perr.Line)
	assert.False(t, perr.Recoverable())
}

func TestLowercaseMethodIsRejected(t *testing.T) {
	_, err := RequestFromReader(strings.NewReader("get / HTTP/1.1\r\n\r\n"))

	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestMalformedRequestLine(t *testing.T) {
	// Missing HTTP version
	data := "GET /path\r\nHost: example.com\r\n\r\n"
	_, err := RequestFromReader(strings.NewReader(data))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRequestLine)
	assert.Contains(t, err.Error(), "invalid request line")

	// Too many tokens
	data = "GET /path HTTP/1.1 extra\r\n\r\n"
	_, err = RequestFromReader(strings.NewReader(data))
	assert.ErrorIs(t, err, ErrMalformedRequestLine)

	// Double space yields an empty token
	data = "GET  /path HTTP/1.1\r\n\r\n"
	_, err = RequestFromReader(strings.NewReader(data))
	assert.ErrorIs(t, err, ErrMalformedRequestLine)
}

func TestBareLineFeedIsRejected(t *testing.T) {
	_, err := RequestFromReader(strings.NewReader("GET / HTTP/1.1\nHost: x\n\n"))

	assert.ErrorIs(t, err, ErrBareLineFeed)
}

func TestEmptyConnection(t *testing.T) {
	_, err := RequestFromReader(strings.NewReader(""))

	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)
}

func TestIncrementalParsing(t *testing.T) {
	// Simulate slow reader that returns data a few bytes at a time
	data := []byte("GET / HTTP/1.1\r\nHost: example.com\r\nContent-Length: 4\r\n\r\nping")
	reader := &slowReader{data: data, chunkSize: 5}

	req, err := RequestFromReader(reader)

	require.NoError(t, err)
	assert.Equal(t, MethodGet, req.Method())
	assert.Equal(t, "/", req.Path())
	assert.Equal(t, "ping", string(req.Body))
}

func TestPartialBodyRead(t *testing.T) {
	// Body arrives in multiple reads
	data := "POST / HTTP/1.1\r\n" +
		"Content-Length: 20\r\n" +
		"\r\n" +
		"12345"

	reader := &slowReader{
		data:      []byte(data + "67890" + "1234567890"),
		chunkSize: len(data),
	}

	req, err := RequestFromReader(reader)

	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", string(req.Body))
}

func TestUnexpectedEOF(t *testing.T) {
	// Content-Length says 100 bytes, but we only have 10
	data := "POST / HTTP/1.1\r\n" +
		"Content-Length: 100\r\n" +
		"\r\n" +
		"0123456789"

	_, err := RequestFromReader(strings.NewReader(data))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncatedBody)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.NotNil(t, perr.Line)
	assert.Equal(t, MethodPost, perr.Line.Method)
	assert.False(t, perr.Recoverable())
}

func TestMultipleMethods(t *testing.T) {
	methods := []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions}

	for _, method := range methods {
		data := string(method) + " / HTTP/1.1\r\nHost: example.com\r\n\r\n"
		req, err := RequestFromReader(strings.NewReader(data))

		require.NoError(t, err, "Method %s should be valid", method)
		assert.Equal(t, method, req.Method())
	}
}

func TestTarget(t *testing.T) {
	req, err := RequestFromReader(strings.NewReader("GET /echo/abc?x=1 HTTP/1.1\r\n\r\n"))

	require.NoError(t, err)
	assert.Equal(t, "/echo/abc?x=1", req.Path())
	assert.Equal(t, "/echo/abc", req.Target())
}

func TestWithWildcardCopies(t *testing.T) {
	req, err := RequestFromReader(strings.NewReader("GET /files/a.txt HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	matched := req.WithWildcard("a.txt")

	assert.Equal(t, "a.txt", matched.Wildcard)
	assert.Equal(t, "", req.Wildcard)
	assert.Equal(t, req.Path(), matched.Path())
}

func TestLimits(t *testing.T) {
	limits := Limits{MaxLineBytes: 32, MaxHeaderBytes: 64, MaxHeaderLines: 3, MaxBodyBytes: 8}

	// Request line over the line limit is not recoverable
	_, err := Read(bufio.NewReader(strings.NewReader("GET /"+strings.Repeat("a", 64)+" HTTP/1.1\r\n\r\n")), limits)
	assert.ErrorIs(t, err, ErrLineTooLong)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.Recoverable())

	// Header line over the line limit
	_, err = Read(bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\nX-Long: "+strings.Repeat("a", 64)+"\r\n\r\n")), limits)
	assert.ErrorIs(t, err, ErrLineTooLong)
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Recoverable())

	// Too many header lines
	_, err = Read(bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\nD: 4\r\n\r\n")), limits)
	assert.ErrorIs(t, err, ErrTooManyHeaders)

	// Header bytes over the total limit
	_, err = Read(bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\n"+
		"X-A: "+strings.Repeat("a", 24)+"\r\n"+
		"X-B: "+strings.Repeat("b", 24)+"\r\n"+
		"X-C: "+strings.Repeat("c", 24)+"\r\n\r\n")), limits)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)

	// Declared body over the limit
	_, err = Read(bufio.NewReader(strings.NewReader("POST / HTTP/1.1\r\nContent-Length: 9\r\n\r\n123456789")), limits)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Recoverable())
}

func TestParseRequestLine(t *testing.T) {
	rl, err := ParseRequestLine("DELETE /items/1 HTTP/1.0")

	require.NoError(t, err)
	assert.Equal(t, MethodDelete, rl.Method)
	assert.Equal(t, "/items/1", rl.Path)
	assert.Equal(t, "HTTP/1.0", rl.Version)
	assert.Equal(t, "DELETE /items/1 HTTP/1.0", rl.String())
}

// slowReader simulates a network connection that provides data slowly
type slowReader struct {
	data      []byte
	chunkSize int
	offset    int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}

	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data)-r.offset {
		n = len(r.data) - r.offset
	}

	copy(p, r.data[r.offset:r.offset+n])
	r.offset += n
	return n, nil
}
