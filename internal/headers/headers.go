package headers

import (
	"bytes"
	"strings"
)

// separator splits a header line into name and value. Lines without it are
// not headers.
const separator = ": "

type field struct {
	key   string
	value string
}

// Headers is an ordered list of header fields. Keys are kept exactly as
// received or set; lookups are case-sensitive.
type Headers struct {
	fields []field
}

func NewHeaders() *Headers {
	return &Headers{}
}

// Get returns the value stored under key
func (h *Headers) Get(key string) (string, bool) {
	if i := h.index(key); i >= 0 {
		return h.fields[i].value, true
	}
	return "", false
}

// Value is Get without the presence flag.
func (h *Headers) Value(key string) string {
	v, _ := h.Get(key)
	return v
}

// Set replaces the value of key in place, or appends a new field
func (h *Headers) Set(key, value string) {
	if i := h.index(key); i >= 0 {
		h.fields[i].value = value
		return
	}
	h.fields = append(h.fields, field{key: key, value: value})
}

// Del removes a header
func (h *Headers) Del(key string) {
	if i := h.index(key); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

func (h *Headers) Has(key string) bool {
	return h.index(key) >= 0
}

func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// Each calls fn for every field in insertion order.
func (h *Headers) Each(fn func(key, value string)) {
	if h == nil {
		return
	}
	for _, f := range h.fields {
		fn(f.key, f.value)
	}
}

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	c := &Headers{fields: make([]field, h.Len())}
	if h != nil {
		copy(c.fields, h.fields)
	}
	return c
}

// ParseLine parses a single header line (without its CRLF) and stores it.
// Lines that do not contain ": " are dropped and reported with ok=false.
func (h *Headers) ParseLine(line []byte) (ok bool) {
	idx := bytes.Index(line, []byte(separator))
	if idx == -1 {
		return false
	}

	key := strings.TrimSpace(string(line[:idx]))
	value := strings.TrimSpace(string(line[idx+len(separator):]))
	h.Set(key, value)
	return true
}

// AppendWire appends "Key: Value\r\n" for every field to buf.
func (h *Headers) AppendWire(buf []byte) []byte {
	h.Each(func(key, value string) {
		buf = append(buf, key...)
		buf = append(buf, separator...)
		buf = append(buf, value...)
		buf = append(buf, '\r', '\n')
	})
	return buf
}

func (h *Headers) index(key string) int {
	if h == nil {
		return -1
	}
	for i, f := range h.fields {
		if f.key == key {
			return i
		}
	}
	return -1
}
