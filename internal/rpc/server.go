package rpc

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"

	"go.klb.dev/clipstack/internal/tlsconf"
)

// Server serves the service on the IPC socket and, optionally, on TCP.
type Server struct {
	svc   *Service
	token string

	ipc  *grpc.Server
	tcp  *grpc.Server
	http *http.Server

	mu      sync.Mutex
	mux     cmux.CMux
	stopped bool
}

// NewServer returns a server for svc. The IPC socket is trusted; TCP calls
// must carry token when it is non-empty.
func NewServer(svc *Service, token string) *Server {
	s := &Server{
		svc:   svc,
		token: token,
		ipc:   grpc.NewServer(),
		tcp: grpc.NewServer(
			grpc.ChainUnaryInterceptor(UnaryAuth(token)),
			grpc.ChainStreamInterceptor(StreamAuth(token)),
		),
		http: &http.Server{
			Handler:           HTTPHandler(svc, token),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	Register(s.ipc, svc)
	Register(s.tcp, svc)
	return s
}

// ServeIPC serves on ln until Stop.
func (s *Server) ServeIPC(ln net.Listener) error {
	slog.Info("IPC listening", "addr", ln.Addr())
	return s.quiet(s.ipc.Serve(ln))
}

// ServeTCP wraps ln in TLS and splits it: gRPC (content-type
// application/grpc*) goes to the service and, when withHTTP is set,
// HTTP/1.1 goes to the JSON API. It blocks until Stop or a listener fails.
func (s *Server) ServeTCP(ln net.Listener, creds *tlsconf.Credentials, withHTTP bool) error {
	m := cmux.New(tls.NewListener(ln, creds.Server))
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		m.Close()
		return nil
	}
	s.mux = m
	s.mu.Unlock()
	s.svc.SetTCPAddr(ln.Addr().String())

	errc := make(chan error, 3)
	go func() { errc <- s.tcp.Serve(grpcL) }()
	if withHTTP {
		httpL := m.Match(cmux.HTTP1Fast())
		go func() { errc <- s.http.Serve(httpL) }()
	}
	go func() { errc <- m.Serve() }()

	slog.Info("TCP listening", "addr", ln.Addr(), "http", withHTTP, "auth", s.token != "")
	return s.quiet(<-errc)
}

// Stop closes every listener and drops open connections, including Watch
// streams.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	m := s.mux
	s.mu.Unlock()

	s.ipc.Stop()
	s.tcp.Stop()
	_ = s.http.Close()
	if m != nil {
		m.Close()
	}
}

// quiet turns the errors a deliberate Stop produces into nil.
func (s *Server) quiet(err error) error {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil
	}
	switch {
	case errors.Is(err, grpc.ErrServerStopped),
		errors.Is(err, http.ErrServerClosed),
		errors.Is(err, cmux.ErrListenerClosed),
		errors.Is(err, cmux.ErrServerClosed),
		errors.Is(err, net.ErrClosed):
		return nil
	}
	return err
}
