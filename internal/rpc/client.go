package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/hub"
	"go.klb.dev/clipstack/internal/ipc"
	"go.klb.dev/clipstack/internal/message"
	"go.klb.dev/clipstack/internal/tlsconf"
)

// Client calls a running daemon.
type Client struct {
	conn *grpc.ClientConn
}

// DialIPC connects to the daemon's local socket or pipe. source names the
// caller in the history.
func DialIPC(path, source string) (*Client, error) {
	return dial("passthrough:///clipstack",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ipc.Dial(ctx, path)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(callCreds{source: source}),
	)
}

// DialTCP connects to a daemon's TCP listener. The TLS key is derived from
// token the same way the daemon derives it.
func DialTCP(addr, token, source string) (*Client, error) {
	creds, err := tlsconf.ClientCredentials(TLSPassphrase(token))
	if err != nil {
		return nil, err
	}
	return dial(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(callCreds{token: token, source: source}),
	)
}

// NewClient wraps an existing connection, which must use the JSON codec
// (see CallOptions).
func NewClient(conn *grpc.ClientConn) *Client { return &Client{conn: conn} }

// CallOptions are the default call options every connection needs.
func CallOptions() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName))
}

func dial(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, append(opts, CallOptions())...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// TLSPassphrase is what the daemon and clients feed tlsconf: the token, or
// the well-known default when running without one.
func TLSPassphrase(token string) string {
	if token == "" {
		return tlsconf.DefaultPassphrase
	}
	return token
}

func (c *Client) Close() error { return c.conn.Close() }

func call[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, methodPath(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Copy(ctx context.Context, items []message.Item) (*CopyResponse, error) {
	return call[CopyResponse](ctx, c, "Copy", &CopyRequest{Items: items})
}

func (c *Client) Paste(ctx context.Context, req *PasteRequest) (*PasteResponse, error) {
	return call[PasteResponse](ctx, c, "Paste", req)
}

func (c *Client) History(ctx context.Context, q history.Query) ([]history.Item, error) {
	resp, err := call[HistoryResponse](ctx, c, "History", &HistoryRequest{Query: q})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) Pin(ctx context.Context, id string, pinned bool) (history.Item, error) {
	resp, err := call[ItemResponse](ctx, c, "Pin", &PinRequest{ID: id, Pinned: pinned})
	if err != nil {
		return history.Item{}, err
	}
	return resp.Item, nil
}

func (c *Client) Edit(ctx context.Context, id, text string) (history.Item, error) {
	resp, err := call[ItemResponse](ctx, c, "Edit", &EditRequest{ID: id, Text: text})
	if err != nil {
		return history.Item{}, err
	}
	return resp.Item, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := call[Empty](ctx, c, "Delete", &DeleteRequest{ID: id})
	return err
}

func (c *Client) Clear(ctx context.Context, all bool) (int, error) {
	resp, err := call[ClearResponse](ctx, c, "Clear", &ClearRequest{All: all})
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (c *Client) Collections(ctx context.Context) ([]history.CollectionInfo, error) {
	resp, err := call[CollectionsResponse](ctx, c, "Collections", &Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

func (c *Client) CollectionEdit(ctx context.Context, req *CollectionEditRequest) (*CollectionEditResponse, error) {
	return call[CollectionEditResponse](ctx, c, "CollectionEdit", req)
}

func (c *Client) StackActivate(ctx context.Context, ids []string, plain *bool) (*StackResponse, error) {
	return call[StackResponse](ctx, c, "StackActivate", &StackActivateRequest{IDs: ids, Plain: plain})
}

func (c *Client) StackNext(ctx context.Context) (*StackResponse, error) {
	return call[StackResponse](ctx, c, "StackNext", &Empty{})
}

func (c *Client) StackSkip(ctx context.Context) (*StackResponse, error) {
	return call[StackResponse](ctx, c, "StackSkip", &Empty{})
}

func (c *Client) StackCancel(ctx context.Context) (*StackResponse, error) {
	return call[StackResponse](ctx, c, "StackCancel", &Empty{})
}

func (c *Client) StackStatus(ctx context.Context) (*StackResponse, error) {
	return call[StackResponse](ctx, c, "StackStatus", &Empty{})
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return call[StatusResponse](ctx, c, "Status", &Empty{})
}

// Watch calls fn for every event matching kinds until ctx is done, the
// daemon goes away, or fn returns an error.
func (c *Client) Watch(ctx context.Context, kinds []hub.Kind, fn func(hub.Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &watchStream, methodPath("Watch"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&WatchRequest{Kinds: kinds}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var ev hub.Event
		if err := stream.RecvMsg(&ev); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
