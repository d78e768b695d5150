// Package app is the demo service: echo, user-agent and file endpoints
// mounted on the raw HTTP server.
package app

import (
	"github.com/Brownie44l1/rawhttp/internal/middleware"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
	"github.com/Brownie44l1/rawhttp/internal/router"
	"github.com/Brownie44l1/rawhttp/internal/static"
)

// Routes registers the service endpoints on r. Every handler honours the
// negotiated Content-Encoding.
func Routes(r *router.Router, files *static.Handler) error {
	routes := []struct {
		method  request.Method
		pattern string
		handler router.Handler
	}{
		{request.MethodGet, "/", Root},
		{request.MethodGet, "/echo/*", Echo},
		{request.MethodGet, "/user-agent", UserAgent},
		{request.MethodGet, "/files/*", files.Get},
		{request.MethodPost, "/files/*", files.Post},
	}

	for _, rt := range routes {
		if err := r.Register(rt.method, rt.pattern, Encoded(rt.handler)); err != nil {
			return err
		}
	}
	return nil
}

// NewPipeline returns the standard middleware: request ids and encoding
// negotiation before the handler, CORS headers after it when configured.
func NewPipeline(cors middleware.CORSConfig) *middleware.Pipeline {
	p := middleware.NewPipeline().
		Use(middleware.RequestID(), middleware.ContentEncoding())
	if cors.Enabled() {
		p.UsePost(middleware.CORS(cors))
	}
	return p
}

// Root answers 200 with an empty body.
func Root(req *request.Request, res *response.Response) *response.Response {
	return res
}

// Echo answers with the path remainder after /echo/.
func Echo(req *request.Request, res *response.Response) *response.Response {
	return res.Text(response.StatusOK, req.Wildcard)
}

// UserAgent answers with the request's User-Agent header.
func UserAgent(req *request.Request, res *response.Response) *response.Response {
	return res.Text(response.StatusOK, req.Header("User-Agent"))
}
