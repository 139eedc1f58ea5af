// Package ipc is the local channel between the clipstack CLI and its daemon:
// a Unix domain socket, or a named pipe on Windows. The control-plane gRPC
// service runs over it without TLS or a token; access is limited by the
// socket's file permissions.
package ipc

import (
	"context"
	"net"
	"os"
	"time"
)

// EnvSocket overrides the socket path.
const EnvSocket = "CLIPSTACK_SOCKET"

// SocketPath returns the IPC endpoint:
//
//   - $CLIPSTACK_SOCKET when set
//   - Linux / macOS: $XDG_RUNTIME_DIR/clipstack.sock, else $TMPDIR/clipstack.sock
//   - Windows:       \\.\pipe\clipstack
func SocketPath() string {
	if s := os.Getenv(EnvSocket); s != "" {
		return s
	}
	return socketPath()
}

// Listen listens on path, replacing a stale socket left by a crashed daemon.
// It fails if another daemon is already serving there.
func Listen(path string) (net.Listener, error) {
	return listenIPC(path)
}

// Dial connects to the daemon at path.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	return dialIPC(ctx, path)
}

// IsRunning reports whether a daemon answers on path. It dials and closes;
// no data is exchanged.
func IsRunning(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := dialIPC(ctx, path)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}
