// Package rpc is the clipstack control plane: a gRPC service with a JSON
// codec, served on the local IPC socket and optionally on TCP behind
// token-derived TLS, where it shares the port with a small HTTP/JSON API.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstack/internal/capture"
	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/hub"
	"go.klb.dev/clipstack/internal/paste"
	"go.klb.dev/clipstack/internal/stack"
)

// Deps are the daemon components the service drives.
type Deps struct {
	Store   *history.Store
	Monitor *capture.Monitor
	Paste   *paste.Service
	Stack   *stack.Coordinator
	Hub     *hub.Hub
	Version string
}

// Service implements the ClipStack RPCs.
type Service struct {
	d       Deps
	started time.Time
	tcpAddr atomic.Pointer[string]
}

// NewService returns a service over d.
func NewService(d Deps) *Service {
	return &Service{d: d, started: time.Now()}
}

// SetTCPAddr records the TCP listen address for Status.
func (s *Service) SetTCPAddr(addr string) { s.tcpAddr.Store(&addr) }

func (s *Service) tcp() string {
	if p := s.tcpAddr.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Service) Copy(ctx context.Context, req *CopyRequest) (*CopyResponse, error) {
	c, ok := content.Classify(req.Items)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "nothing to copy")
	}
	if err := s.d.Monitor.Write(req.Items); err != nil {
		return nil, toStatus(fmt.Errorf("clipboard write: %w", err))
	}
	src := req.Source
	if src == "" {
		src = sourceFromCtx(ctx)
	}
	it, isNew := s.d.Store.Add(c, src)
	return &CopyResponse{Item: it, New: isNew}, nil
}

func (s *Service) Paste(ctx context.Context, req *PasteRequest) (*PasteResponse, error) {
	plain := s.d.Paste.PlainText()
	if req.Plain != nil {
		plain = *req.Plain
	}

	if len(req.IDs) > 0 {
		items := make([]history.Item, 0, len(req.IDs))
		for _, id := range req.IDs {
			it, err := s.d.Store.Get(id)
			if err != nil {
				return nil, toStatus(err)
			}
			items = append(items, it)
		}
		var err error
		switch req.Mode {
		case PasteReturn, "":
		case PasteClipboard:
			err = s.d.Paste.CopyMultiple(ctx, req.IDs, req.Separator)
		case PasteKeystroke:
			err = s.d.Paste.PasteMultiple(ctx, req.IDs, req.Separator)
		default:
			return nil, status.Errorf(codes.InvalidArgument, "unknown paste mode %q", req.Mode)
		}
		if err != nil {
			return nil, toStatus(err)
		}
		return &PasteResponse{Items: items}, nil
	}

	id := req.ID
	if id == "" {
		latest, _ := s.d.Store.List(history.Query{Limit: 1})
		if len(latest) == 0 {
			return nil, status.Error(codes.NotFound, "history is empty")
		}
		id = latest[0].ID
	}
	it, err := s.d.Store.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}

	switch req.Mode {
	case PasteReturn, "":
	case PasteClipboard:
		err = s.d.Paste.Copy(ctx, id, plain)
	case PasteKeystroke:
		err = s.d.Paste.Paste(ctx, id, plain)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown paste mode %q", req.Mode)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &PasteResponse{Items: []history.Item{it}}, nil
}

func (s *Service) History(_ context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	items, err := s.d.Store.List(req.Query)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HistoryResponse{Items: items}, nil
}

func (s *Service) Pin(_ context.Context, req *PinRequest) (*ItemResponse, error) {
	it, err := s.d.Store.SetPinned(req.ID, req.Pinned)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ItemResponse{Item: it}, nil
}

func (s *Service) Edit(_ context.Context, req *EditRequest) (*ItemResponse, error) {
	it, err := s.d.Store.Edit(req.ID, req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ItemResponse{Item: it}, nil
}

func (s *Service) Delete(_ context.Context, req *DeleteRequest) (*Empty, error) {
	if err := s.d.Store.Delete(req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Service) Clear(_ context.Context, req *ClearRequest) (*ClearResponse, error) {
	return &ClearResponse{Removed: s.d.Store.Clear(!req.All)}, nil
}

func (s *Service) Collections(context.Context, *Empty) (*CollectionsResponse, error) {
	return &CollectionsResponse{Collections: s.d.Store.Collections()}, nil
}

func (s *Service) CollectionEdit(_ context.Context, req *CollectionEditRequest) (*CollectionEditResponse, error) {
	var (
		resp CollectionEditResponse
		err  error
	)
	switch req.Action {
	case CollectionCreate:
		var c history.Collection
		c, err = s.d.Store.CreateCollection(req.Name, req.Icon, req.Color)
		resp.Collection = &c
	case CollectionRename:
		var c history.Collection
		c, err = s.d.Store.RenameCollection(req.Collection, req.Name)
		resp.Collection = &c
	case CollectionDelete:
		err = s.d.Store.DeleteCollection(req.Collection)
	case CollectionAdd:
		var it history.Item
		it, err = s.d.Store.AddToCollection(req.ItemID, req.Collection)
		resp.Item = &it
	case CollectionRemove:
		var it history.Item
		it, err = s.d.Store.RemoveFromCollection(req.ItemID, req.Collection)
		resp.Item = &it
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown collection action %q", req.Action)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

func (s *Service) StackActivate(_ context.Context, req *StackActivateRequest) (*StackResponse, error) {
	plain := s.d.Paste.PlainText()
	if req.Plain != nil {
		plain = *req.Plain
	}
	entries, err := s.d.Paste.Entries(req.IDs, plain)
	if err != nil {
		return nil, toStatus(err)
	}
	s.d.Stack.Activate(entries)
	return &StackResponse{State: s.d.Stack.Snapshot()}, nil
}

func (s *Service) StackNext(context.Context, *Empty) (*StackResponse, error) {
	resp := &StackResponse{}
	if e, ok := s.d.Stack.Advance(); ok {
		e.Items = nil
		resp.Pasted = &e
	}
	resp.State = s.d.Stack.Snapshot()
	return resp, nil
}

func (s *Service) StackSkip(context.Context, *Empty) (*StackResponse, error) {
	s.d.Stack.Skip()
	return &StackResponse{State: s.d.Stack.Snapshot()}, nil
}

func (s *Service) StackCancel(context.Context, *Empty) (*StackResponse, error) {
	s.d.Stack.Deactivate()
	return &StackResponse{State: s.d.Stack.Snapshot()}, nil
}

func (s *Service) StackStatus(context.Context, *Empty) (*StackResponse, error) {
	return &StackResponse{State: s.d.Stack.Snapshot()}, nil
}

func (s *Service) Status(context.Context, *Empty) (*StatusResponse, error) {
	return &StatusResponse{
		Version:     s.d.Version,
		StartedAt:   s.started,
		Items:       s.d.Store.Len(),
		Capture:     s.d.Monitor.Stats(),
		Stack:       s.d.Stack.Snapshot(),
		Subscribers: s.d.Hub.Subscribers(),
		TCP:         s.tcp(),
	}, nil
}

// Watch streams hub events until the client goes away.
func (s *Service) Watch(req *WatchRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	id := fmt.Sprintf("watch/%s/%s", addrFromCtx(ctx), uuid.NewString()[:8])
	sub := hub.NewChan(id, req.Kinds, 64)

	s.d.Hub.Register(sub)
	defer s.d.Hub.Unregister(sub)
	slog.Info("watch started", "subscriber", id, "kinds", req.Kinds)
	defer slog.Info("watch ended", "subscriber", id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-sub.Events():
			if err := stream.SendMsg(&ev); err != nil {
				return err
			}
		}
	}
}

// toStatus maps package errors to gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, history.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, history.ErrCollectionExists):
		code = codes.AlreadyExists
	case errors.Is(err, history.ErrSmartCollection):
		code = codes.FailedPrecondition
	case errors.Is(err, history.ErrNotEditable),
		errors.Is(err, history.ErrInvalidCollection),
		errors.Is(err, content.ErrInvalidColor),
		errors.Is(err, paste.ErrNothingToPaste):
		code = codes.InvalidArgument
	case errors.Is(err, paste.ErrKeystrokeUnsupported):
		code = codes.Unimplemented
	case errors.Is(err, paste.ErrClosed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if a := p.Addr.String(); a != "" {
			return a
		}
	}
	return "local"
}
