package rpc

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	headerAuthorization = "authorization"
	headerSource        = "x-clipstack-source"
	bearerPrefix        = "Bearer "
)

// checkToken validates a bearer token against want. An empty want accepts
// everything.
func checkToken(header, want string) bool {
	if want == "" {
		return true
	}
	got := strings.TrimPrefix(header, bearerPrefix)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func authorize(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get(headerAuthorization)
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	if !checkToken(vals[0], token) {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

// UnaryAuth rejects unary calls without the bearer token.
func UnaryAuth(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := authorize(ctx, token); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuth rejects streams without the bearer token.
func StreamAuth(token string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := authorize(ss.Context(), token); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func sourceFromCtx(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(headerSource); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return "rpc:" + addrFromCtx(ctx)
}

// callCreds attaches the token and the caller's source name to every call.
type callCreds struct {
	token  string
	source string
}

func (c callCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	md := make(map[string]string, 2)
	if c.token != "" {
		md[headerAuthorization] = bearerPrefix + c.token
	}
	if c.source != "" {
		md[headerSource] = c.source
	}
	return md, nil
}

func (callCreds) RequireTransportSecurity() bool { return false }
