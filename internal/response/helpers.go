package response

import (
	"fmt"
)

const (
	ContentTypeText  = "text/plain"
	ContentTypeOctet = "application/octet-stream"
)

// Text sets status, a text/plain content type and body.
func (r *Response) Text(code StatusCode, body string) *Response {
	return r.SetStatus(code).
		SetHeader("Content-Type", ContentTypeText).
		SetText(body)
}

// Octets sets status, an application/octet-stream content type and body.
func (r *Response) Octets(code StatusCode, body []byte) *Response {
	return r.SetStatus(code).
		SetHeader("Content-Type", ContentTypeOctet).
		SetBytes(body)
}

// Error writes the standard "<code> <phrase>" text body.
func (r *Response) Error(code StatusCode) *Response {
	return r.Text(code, fmt.Sprintf("%d %s", code, StatusText(code)))
}

func (r *Response) NotFound() *Response {
	return r.Error(StatusNotFound)
}

func (r *Response) InternalError() *Response {
	return r.Error(StatusInternalServerError)
}

// BadRequest answers 400 with message as body.
func (r *Response) BadRequest(message string) *Response {
	return r.Text(StatusBadRequest, message)
}
