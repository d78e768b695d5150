package middleware

import (
	"github.com/google/uuid"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxRequestIDLength = 128
)

// RequestID echoes the client's X-Request-ID, or sets a fresh UUID so the
// response can be correlated with the server log.
func RequestID() Middleware {
	return func(req *request.Request, res *response.Response) *response.Response {
		id := req.Header(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		return res.SetHeader(HeaderRequestID, id)
	}
}
