package response

import (
	"github.com/Brownie44l1/rawhttp/internal/headers"
)

// Body is either TextBody or BytesBody.
type Body interface {
	// Len is the number of bytes the body occupies on the wire.
	Len() int
	appendTo(buf []byte) []byte
}

// TextBody is UTF-8 encoded when the response is serialized.
type TextBody string

func (b TextBody) Len() int { return len(b) }

func (b TextBody) appendTo(buf []byte) []byte { return append(buf, b...) }

// BytesBody is written to the wire untouched.
type BytesBody []byte

func (b BytesBody) Len() int { return len(b) }

func (b BytesBody) appendTo(buf []byte) []byte { return append(buf, b...) }

// Response is the mutable response a handler chain works on.
type Response struct {
	Status  StatusCode
	Headers *headers.Headers
	Body    Body
}

// New returns a 200 response with no headers and an empty text body.
func New() *Response {
	return &Response{
		Status:  StatusOK,
		Headers: headers.NewHeaders(),
		Body:    TextBody(""),
	}
}

func (r *Response) SetStatus(code StatusCode) *Response {
	r.Status = code
	return r
}

func (r *Response) SetHeader(key, value string) *Response {
	r.headers().Set(key, value)
	return r
}

// headers returns r.Headers, creating it for responses built without New.
func (r *Response) headers() *headers.Headers {
	if r.Headers == nil {
		r.Headers = headers.NewHeaders()
	}
	return r.Headers
}

// Header returns the value of key or "".
func (r *Response) Header(key string) string {
	return r.Headers.Value(key)
}

func (r *Response) SetText(body string) *Response {
	r.Body = TextBody(body)
	return r
}

func (r *Response) SetBytes(body []byte) *Response {
	r.Body = BytesBody(body)
	return r
}

// BodyBytes returns the body as it will be written.
func (r *Response) BodyBytes() []byte {
	if r.Body == nil {
		return nil
	}
	return r.Body.appendTo(make([]byte, 0, r.Body.Len()))
}
