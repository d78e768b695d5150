package app

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/rawhttp/internal/middleware"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
	"github.com/Brownie44l1/rawhttp/internal/router"
	"github.com/Brownie44l1/rawhttp/internal/server"
	"github.com/Brownie44l1/rawhttp/internal/static"
)

type testServer struct {
	base   string
	client *http.Client
}

func newTestServer(t *testing.T, dir string, cors middleware.CORSConfig) *testServer {
	t.Helper()

	files, err := static.New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { files.Close() })

	r := router.New()
	require.NoError(t, Routes(r, files))

	srv, err := server.New(server.Config{}, r, NewPipeline(cors), server.WithLogger(server.NopLogger()))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return &testServer{
		base: "http://" + ln.Addr().String(),
		client: &http.Client{
			Timeout: 5 * time.Second,
			// one request per connection, and no transparent gzip
			Transport: &http.Transport{DisableKeepAlives: true, DisableCompression: true},
		},
	}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, header ...string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, s.base+path, body)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{})

	res, body := s.do(t, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, body)
	assert.NotEmpty(t, res.Header.Get(middleware.HeaderRequestID))
}

func TestEcho(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{})

	res, body := s.do(t, http.MethodGet, "/echo/abc", nil)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/plain", res.Header.Get("Content-Type"))
	assert.Equal(t, "abc", string(body))
	assert.Empty(t, res.Header.Get("Content-Encoding"))
}

func TestUserAgent(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{})

	res, body := s.do(t, http.MethodGet, "/user-agent", nil, "User-Agent", "test-client/1.0")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "test-client/1.0", string(body))
}

func TestFilesRoundTrip(t *testing.T) {
	s := newTestServer(t, t.TempDir(), middleware.CORSConfig{})

	res, _ := s.do(t, http.MethodPost, "/files/note.txt", strings.NewReader("hello"))
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	res, body := s.do(t, http.MethodGet, "/files/note.txt", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/octet-stream", res.Header.Get("Content-Type"))
	assert.Equal(t, "hello", string(body))

	res, _ = s.do(t, http.MethodGet, "/files/missing.txt", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestFilesWithoutDirectory(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{})

	res, body := s.do(t, http.MethodGet, "/files/note.txt", nil)

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "File serving directory not specified", string(body))
}

func TestUnregisteredPath(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{})

	res, body := s.do(t, http.MethodGet, "/unregistered/path", nil)

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "404 Not Found", string(body))

	// method is part of the route key
	res, _ = s.do(t, http.MethodDelete, "/echo/abc", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestEchoGzip(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{})

	res, body := s.do(t, http.MethodGet, "/echo/abc", nil, "Accept-Encoding", "invalid-one, gzip")

	assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
	assert.Equal(t, int64(len(body)), res.ContentLength)

	zr, err := gzip.NewReader(bytes.NewReader(body))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(plain))
}

func TestEchoDeflate(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{})

	res, body := s.do(t, http.MethodGet, "/echo/xyz", nil, "Accept-Encoding", "gzip, deflate")

	assert.Equal(t, "deflate", res.Header.Get("Content-Encoding"))
	zr, err := zlib.NewReader(bytes.NewReader(body))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(plain))
}

func TestEchoBrotliFallsBackToPlain(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{})

	res, body := s.do(t, http.MethodGet, "/echo/abc", nil, "Accept-Encoding", "gzip, deflate, br")

	assert.Empty(t, res.Header.Get("Content-Encoding"))
	assert.Equal(t, "abc", string(body))
}

func TestCORSHeaders(t *testing.T) {
	s := newTestServer(t, "", middleware.CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET"},
	})

	res, _ := s.do(t, http.MethodGet, "/echo/abc", nil, "Origin", "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", res.Header.Get("Access-Control-Allow-Origin"))

	// post middleware also runs for unmatched routes
	res, _ = s.do(t, http.MethodGet, "/nope", nil, "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "http://localhost:3000", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestEncodedIdentityAndNil(t *testing.T) {
	req := &request.Request{}
	res := response.New().SetHeader("Content-Encoding", "identity")

	out := Encoded(Echo)(req.WithWildcard("same"), res)
	assert.Equal(t, "same", string(out.BodyBytes()))

	nilHandler := func(*request.Request, *response.Response) *response.Response { return nil }
	assert.Nil(t, Encoded(nilHandler)(req, response.New()))
}

func TestRoutesConflict(t *testing.T) {
	files, err := static.New("")
	require.NoError(t, err)

	r := router.New()
	require.NoError(t, r.GET("/echo/*", Echo))

	assert.Error(t, Routes(r, files))
}
