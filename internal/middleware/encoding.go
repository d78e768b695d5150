package middleware

import (
	"strings"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

const (
	EncodingGzip     = "gzip"
	EncodingDeflate  = "deflate"
	EncodingBrotli   = "br"
	EncodingIdentity = "identity"
)

var supportedEncodings = map[string]struct{}{
	EncodingGzip:     {},
	EncodingDeflate:  {},
	EncodingBrotli:   {},
	EncodingIdentity: {},
}

// ContentEncoding negotiates Content-Encoding from the request's
// Accept-Encoding list. Every supported token overwrites the previous one, so
// the last supported token in the client's list wins. Quality values are not
// interpreted and the body is never compressed here.
func ContentEncoding() Middleware {
	return func(req *request.Request, res *response.Response) *response.Response {
		accept, ok := req.Headers.Get("Accept-Encoding")
		if !ok {
			return res
		}

		for _, token := range strings.Split(accept, ",") {
			token = strings.TrimSpace(token)
			if _, supported := supportedEncodings[token]; supported {
				res.SetHeader("Content-Encoding", token)
			}
		}
		return res
	}
}
