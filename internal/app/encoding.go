package app

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/Brownie44l1/rawhttp/internal/middleware"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
	"github.com/Brownie44l1/rawhttp/internal/router"
)

const headerContentEncoding = "Content-Encoding"

// Encoded wraps h so its body is compressed to match the Content-Encoding
// chosen by negotiation. Encodings without an encoder here (br) are removed
// so the header never claims something the body is not.
func Encoded(h router.Handler) router.Handler {
	return func(req *request.Request, res *response.Response) *response.Response {
		res = h(req, res)
		if res == nil {
			return nil
		}

		encoding, ok := res.Headers.Get(headerContentEncoding)
		if !ok {
			return res
		}

		var (
			body []byte
			err  error
		)
		switch encoding {
		case middleware.EncodingIdentity:
			return res
		case middleware.EncodingGzip:
			body, err = compress(res.BodyBytes(), func(w io.Writer) io.WriteCloser {
				return gzip.NewWriter(w)
			})
		case middleware.EncodingDeflate:
			body, err = compress(res.BodyBytes(), func(w io.Writer) io.WriteCloser {
				return zlib.NewWriter(w)
			})
		default:
			res.Headers.Del(headerContentEncoding)
			return res
		}
		if err != nil {
			res.Headers.Del(headerContentEncoding)
			return res.InternalError()
		}
		return res.SetBytes(body)
	}
}

func compress(data []byte, newWriter func(io.Writer) io.WriteCloser) ([]byte, error) {
	var buf bytes.Buffer
	w := newWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
