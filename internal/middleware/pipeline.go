package middleware

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

// ErrNilResponse is the panic value used when a middleware returns nil.
var ErrNilResponse = errors.New("middleware: nil response")

// Middleware has the same shape as a route handler. It receives the response
// produced by the previous stage and returns the one for the next stage.
// Returning res unchanged is how a middleware opts out; there is no way to
// stop the chain.
type Middleware func(req *request.Request, res *response.Response) *response.Response

// Pipeline holds the ordered pre-handler and post-handler chains. It is built
// at startup and only read afterwards.
type Pipeline struct {
	pre    []Middleware
	post   []Middleware
	frozen bool
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Use appends middleware that runs before the handler.
func (p *Pipeline) Use(mw ...Middleware) *Pipeline {
	p.checkFrozen()
	p.pre = appendChecked(p.pre, mw)
	return p
}

// UsePost appends middleware that runs after the handler.
func (p *Pipeline) UsePost(mw ...Middleware) *Pipeline {
	p.checkFrozen()
	p.post = appendChecked(p.post, mw)
	return p
}

// Freeze makes any later Use or UsePost panic. The server freezes the
// pipeline before it starts accepting.
func (p *Pipeline) Freeze() {
	p.frozen = true
}

func (p *Pipeline) checkFrozen() {
	if p.frozen {
		panic("middleware: Use after the server started")
	}
}

func (p *Pipeline) Len() (pre, post int) {
	return len(p.pre), len(p.post)
}

// ApplyPre folds the pre chain left to right starting from res.
func (p *Pipeline) ApplyPre(req *request.Request, res *response.Response) *response.Response {
	return fold(p.pre, req, res)
}

// ApplyPost folds the post chain left to right starting from the handler's
// response.
func (p *Pipeline) ApplyPost(req *request.Request, res *response.Response) *response.Response {
	return fold(p.post, req, res)
}

// fold panics with ErrNilResponse when a stage returns nil; the connection
// handler turns that into a 500 like any other handler failure.
func fold(chain []Middleware, req *request.Request, res *response.Response) *response.Response {
	for i, mw := range chain {
		res = mw(req, res)
		if res == nil {
			panic(fmt.Errorf("%w (stage %d)", ErrNilResponse, i))
		}
	}
	return res
}

func appendChecked(dst, mw []Middleware) []Middleware {
	for _, fn := range mw {
		if fn == nil {
			panic("middleware: nil middleware passed to Use")
		}
	}
	return append(dst, mw...)
}
