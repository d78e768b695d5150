package request

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Brownie44l1/rawhttp/internal/headers"
)

// contentLength reads the Content-Length header. The key must match exactly;
// a missing, malformed or negative value means no body.
func contentLength(h *headers.Headers) int64 {
	cl, ok := h.Get("Content-Length")
	if !ok {
		return 0
	}

	length, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || length < 0 {
		return 0
	}
	return length
}

// readBody reads exactly length bytes. There is no chunked decoding.
func readBody(reader *bufio.Reader, length, max int64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}

	if length > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, length, max)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(reader, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedBody, io.ErrUnexpectedEOF)
		}
		return nil, err
	}

	return buf, nil
}
