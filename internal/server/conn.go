package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Brownie44l1/rawhttp/internal/headers"
	"github.com/Brownie44l1/rawhttp/internal/middleware"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

// connState is where a connection is in its single request/response cycle.
// States only move forward; every path ends in stateClosed.
type connState int

const (
	stateAwaitRequest connState = iota
	stateParsed
	stateRouted
	statePreMiddleware
	stateHandled
	statePostMiddleware
	stateSerialized
	stateClosed
)

var stateNames = [...]string{
	stateAwaitRequest:   "AwaitRequest",
	stateParsed:         "Parsed",
	stateRouted:         "Routed",
	statePreMiddleware:  "PreMiddleware",
	stateHandled:        "Handled",
	statePostMiddleware: "PostMiddleware",
	stateSerialized:     "Serialized",
	stateClosed:         "Closed",
}

func (s connState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("connState(%d)", int(s))
	}
	return stateNames[s]
}

// HandlerError is a panic or nil response recovered from a handler or
// middleware. The client gets a 500 instead.
type HandlerError struct {
	Stage string
	Value any
	Stack []byte
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Value)
}

func (e *HandlerError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

type conn struct {
	srv      *Server
	rwc      net.Conn
	clientIP string
	state    connState
	span     trace.Span
}

func (s *Server) newConn(rwc net.Conn) *conn {
	return &conn{
		srv:      s,
		rwc:      rwc,
		clientIP: clientIP(rwc.RemoteAddr()),
		state:    stateAwaitRequest,
		span:     trace.SpanFromContext(context.Background()),
	}
}

func (c *conn) setState(state connState) {
	c.state = state
	c.span.AddEvent(state.String())
}

// serve runs the whole lifecycle of one connection: read a request, route,
// run the pipeline and handler, write the response, close.
func (c *conn) serve(ctx context.Context) {
	srv := c.srv
	start := time.Now()

	srv.metrics.ConnOpened(ctx)
	defer func() {
		c.setState(stateClosed)
		srv.metrics.ConnClosed(ctx)
		c.rwc.Close()
	}()

	if d := srv.config.ReadTimeout; d > 0 {
		c.rwc.SetReadDeadline(time.Now().Add(d))
	}

	br := getReader(c.rwc)
	req, err := request.Read(br, srv.config.Limits())
	putReader(br)
	if err != nil {
		c.handleParseError(ctx, err)
		return
	}

	ctx, c.span = srv.tracer.Start(ctx, string(req.Method()),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", string(req.Method())),
			attribute.String("url.path", req.Target()),
			attribute.String("client.address", c.clientIP),
		),
	)
	defer c.span.End()
	c.setState(stateParsed)

	res, route := c.dispatch(req)
	res, wire := c.serialize(req, res)

	if d := srv.config.WriteTimeout; d > 0 {
		c.rwc.SetWriteDeadline(time.Now().Add(d))
	}
	if _, err := c.rwc.Write(wire); err != nil {
		srv.Logger.Warn("write response failed",
			"error", err,
			"path", req.Path(),
			"client_ip", c.clientIP,
		)
		c.span.RecordError(err)
	}
	c.setState(stateSerialized)

	duration := time.Since(start)
	if route != "" {
		c.span.SetName(string(req.Method()) + " " + route)
		c.span.SetAttributes(attribute.String("http.route", route))
	}
	c.span.SetAttributes(attribute.Int("http.response.status_code", int(res.Status)))
	if res.Status.IsServerError() {
		c.span.SetStatus(codes.Error, response.StatusText(res.Status))
	}

	srv.metrics.RecordRequest(ctx, string(req.Method()), route, res.Status, duration)
	srv.Logger.Info("request handled",
		"method", string(req.Method()),
		"path", req.Path(),
		"status", int(res.Status),
		"duration_ms", duration.Milliseconds(),
		"request_id", res.Header(middleware.HeaderRequestID),
		"client_ip", c.clientIP,
	)
}

// dispatch produces the response for req and the matched route pattern ("" if
// none). An unmatched request skips the pre stage and enters at Handled with a
// 404; a failing handler or pre middleware is replaced by a 500. Post
// middleware sees both. If post middleware itself fails its 500 is final.
func (c *conn) dispatch(req *request.Request) (*response.Response, string) {
	srv := c.srv

	match, ok := srv.router.Resolve(req.Method(), req.Path())
	c.setState(stateRouted)

	var res *response.Response
	route := ""
	if !ok {
		res = response.New().NotFound()
		c.setState(stateHandled)
	} else {
		route = match.Route.Pattern
		req = req.WithWildcard(match.Wildcard)

		c.setState(statePreMiddleware)
		seed := response.New()
		var err error
		res, err = c.safely(func() *response.Response {
			return srv.pipeline.ApplyPre(req, seed)
		})
		// headers set before a failure survive onto the 500
		carried := seed.Headers
		if err == nil {
			carried = res.Headers.Clone()
			c.setState(stateHandled)
			res, err = c.safely(func() *response.Response {
				return match.Route.Handler(req, res)
			})
		}
		if err != nil {
			c.handlerFailed(req, err)
			res = internalError(carried)
			c.setState(stateHandled)
		}
	}

	carried := res.Headers.Clone()
	c.setState(statePostMiddleware)
	out, err := c.safely(func() *response.Response {
		return srv.pipeline.ApplyPost(req, res)
	})
	if err != nil {
		c.handlerFailed(req, err)
		return internalError(carried), route
	}
	return out, route
}

// serialize builds the wire form of res. If that panics the client gets a
// bare 500 instead.
func (c *conn) serialize(req *request.Request, res *response.Response) (out *response.Response, wire []byte) {
	defer func() {
		if v := recover(); v != nil {
			c.handlerFailed(req, &HandlerError{Stage: "Serialize", Value: v, Stack: debug.Stack()})
			out = response.New().InternalError()
			wire = out.Build()
		}
	}()
	return res, res.Build()
}

// internalError is the 500 sent in place of a failed stage. It keeps the
// carried headers except Content-Encoding, because the error body is never
// encoded.
func internalError(carried *headers.Headers) *response.Response {
	res := response.New()
	if carried != nil {
		res.Headers = carried.Clone()
		res.Headers.Del("Content-Encoding")
	}
	return res.InternalError()
}

// safely runs fn, turning a panic or a nil result into a *HandlerError
// tagged with the current state.
func (c *conn) safely(fn func() *response.Response) (res *response.Response, err error) {
	stage := c.state.String()
	defer func() {
		if v := recover(); v != nil {
			res = nil
			err = &HandlerError{Stage: stage, Value: v, Stack: debug.Stack()}
		}
	}()

	res = fn()
	if res == nil {
		return nil, &HandlerError{Stage: stage, Value: middleware.ErrNilResponse}
	}
	return res, nil
}

func (c *conn) handlerFailed(req *request.Request, err error) {
	attrs := []any{
		"error", err,
		"method", string(req.Method()),
		"path", req.Path(),
		"client_ip", c.clientIP,
	}
	var herr *HandlerError
	if errors.As(err, &herr) && herr.Stack != nil {
		attrs = append(attrs, "stack", string(herr.Stack))
	}
	c.srv.Logger.Error("panic recovered", attrs...)
	c.span.RecordError(err)
}

// handleParseError closes out a connection whose request could not be read.
// A best-effort 400 is written only when the request line was understood and
// the stream is still usable.
func (c *conn) handleParseError(ctx context.Context, err error) {
	srv := c.srv

	var perr *request.ParseError
	isParseErr := errors.As(err, &perr)

	// Client connected and went away without sending anything.
	if isParseErr && perr.Line == nil && errors.Is(err, io.EOF) {
		srv.Logger.Debug("connection closed before request", "client_ip", c.clientIP)
		return
	}

	srv.metrics.RecordParseError(ctx)

	if !isParseErr || !perr.Recoverable() {
		srv.Logger.Warn("dropping connection", "error", err, "client_ip", c.clientIP)
		return
	}

	srv.Logger.Warn("bad request",
		"error", err,
		"request", perr.Line.String(),
		"client_ip", c.clientIP,
	)
	if d := srv.config.WriteTimeout; d > 0 {
		c.rwc.SetWriteDeadline(time.Now().Add(d))
	}
	if _, werr := response.New().Error(response.StatusBadRequest).WriteTo(c.rwc); werr != nil {
		srv.Logger.Debug("write 400 failed", "error", werr, "client_ip", c.clientIP)
	}
}

func clientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
