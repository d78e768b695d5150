package response

import (
	"io"
	"strconv"
)

// Build serializes the response. Content-Length is always recomputed from the
// current body, overwriting any value a handler set.
func (r *Response) Build() []byte {
	head := r.head()
	buf := make([]byte, 0, len(head)+r.bodyLen())
	buf = append(buf, head...)
	if r.Body != nil {
		buf = r.Body.appendTo(buf)
	}
	return buf
}

// WriteTo writes the serialized response to w. A BytesBody is written
// directly after the head instead of being copied into one buffer.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var total int64

	n, err := writeAll(w, r.head())
	total += int64(n)
	if err != nil {
		return total, err
	}

	var body []byte
	switch b := r.Body.(type) {
	case BytesBody:
		body = b
	case TextBody:
		body = []byte(b)
	}

	n, err = writeAll(w, body)
	total += int64(n)
	return total, err
}

// head builds the status line, headers and blank line.
func (r *Response) head() []byte {
	h := r.headers()
	h.Set("Content-Length", strconv.Itoa(r.bodyLen()))

	buf := make([]byte, 0, 128)
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(r.Status), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(r.Status)...)
	buf = append(buf, '\r', '\n')
	buf = h.AppendWire(buf)
	buf = append(buf, '\r', '\n')
	return buf
}

func (r *Response) bodyLen() int {
	if r.Body == nil {
		return 0
	}
	return r.Body.Len()
}

func writeAll(w io.Writer, p []byte) (int, error) {
	totalWritten := 0
	for totalWritten < len(p) {
		n, err := w.Write(p[totalWritten:])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}
		if n == 0 {
			return totalWritten, io.ErrShortWrite
		}
	}
	return totalWritten, nil
}
