// tcplistener prints every request it receives, one per connection. It is a
// debugging aid for the request parser and answers each request with a fixed
// text body.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

func main() {
	addr := flag.String("addr", ":42069", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}
	defer listener.Close()
	logger.Info("listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Error("accept failed", "error", err)
			continue
		}

		go handleConnection(conn, logger)
	}
}

func handleConnection(conn net.Conn, logger *slog.Logger) {
	defer conn.Close()

	req, err := request.Read(bufio.NewReader(conn), request.DefaultLimits())
	if err != nil {
		logger.Warn("read request failed", "error", err, "remote", conn.RemoteAddr().String())
		return
	}

	fmt.Println("Request line:")
	fmt.Printf("- Method: %s\n", req.Method())
	fmt.Printf("- Target: %s\n", req.Path())
	fmt.Printf("- Version: %s\n", req.Version())
	fmt.Println("Headers:")
	req.Headers.Each(func(key, value string) {
		fmt.Printf("- %s: %s\n", key, value)
	})
	fmt.Println("Body:")
	fmt.Printf("%s\n", req.Body)

	res := response.New().Text(response.StatusOK, "Hello from your HTTP server!\n")
	if _, err := res.WriteTo(conn); err != nil {
		logger.Warn("write response failed", "error", err)
	}
}
