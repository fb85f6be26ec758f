package lspserver

import (
	"context"
	"io"
	"os"

	"github.com/sourcegraph/jsonrpc2"
)

// stdrwc adapts stdin/stdout into the io.ReadWriteCloser jsonrpc2's
// buffered stream wants. Closing it closes stdin only; stdout is left for
// the runtime to reap on process exit.
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdrwc) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdrwc) Close() error                { return os.Stdin.Close() }

// Serve runs s over stdio until the client disconnects or sends `exit`,
// using jsonrpc2.VSCodeObjectCodec for LSP's Content-Length-framed JSON,
// the same wiring sourcegraph's own LSP servers use.
func Serve(ctx context.Context, s *Server) error {
	conn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(stdrwc{}, jsonrpc2.VSCodeObjectCodec{}), s)
	select {
	case <-conn.DisconnectNotify():
		return nil
	case <-s.Done():
		return conn.Close()
	case <-ctx.Done():
		return conn.Close()
	}
}

var _ io.ReadWriteCloser = stdrwc{}
