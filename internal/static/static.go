package static

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

const (
	msgNoDirectory     = "File serving directory not specified"
	msgInvalidFileName = "Invalid file name"
)

// Handler serves and stores files below one directory. The file name is the
// request's wildcard remainder, so it has to be registered on a "prefix/*"
// route. Access goes through os.Root and cannot leave the directory.
//
// Concurrent writes to the same name are not coordinated; the last writer
// wins.
type Handler struct {
	root *os.Root
}

// New opens dir for serving. An empty dir yields a Handler that answers every
// request with 400.
func New(dir string) (*Handler, error) {
	if dir == "" {
		return &Handler{}, nil
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("static: open directory: %w", err)
	}
	return &Handler{root: root}, nil
}

// Dir returns the served directory, or "" when disabled.
func (h *Handler) Dir() string {
	if h.root == nil {
		return ""
	}
	return h.root.Name()
}

func (h *Handler) Close() error {
	if h.root == nil {
		return nil
	}
	return h.root.Close()
}

// Get answers with the raw file contents as application/octet-stream.
func (h *Handler) Get(req *request.Request, res *response.Response) *response.Response {
	name, fail := h.fileName(req, res)
	if fail != nil {
		return fail
	}

	data, err := h.read(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return res.NotFound()
	case err != nil:
		return res.InternalError()
	}

	return res.Octets(response.StatusOK, data)
}

// Post writes the request body to the named file, creating or truncating it.
func (h *Handler) Post(req *request.Request, res *response.Response) *response.Response {
	name, fail := h.fileName(req, res)
	if fail != nil {
		return fail
	}

	if err := h.write(name, req.Body); err != nil {
		return res.InternalError()
	}

	return res.SetStatus(response.StatusCreated).SetText("")
}

// fileName validates the wildcard. On failure it returns the 400 response
// to send instead.
func (h *Handler) fileName(req *request.Request, res *response.Response) (string, *response.Response) {
	if h.root == nil {
		return "", res.BadRequest(msgNoDirectory)
	}

	name := req.Wildcard
	if name == "" || !filepath.IsLocal(name) {
		return "", res.BadRequest(msgInvalidFileName)
	}
	return filepath.FromSlash(name), nil
}

func (h *Handler) read(name string) ([]byte, error) {
	f, err := h.root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}

	return io.ReadAll(f)
}

func (h *Handler) write(name string, data []byte) error {
	f, err := h.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
