// Package grpcservice implements the HistoryService gRPC server.
package grpcservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/keepclip/internal/history"
	"go.klb.dev/keepclip/internal/hub"
	"go.klb.dev/keepclip/internal/imagestore"
	"go.klb.dev/keepclip/internal/service"
)

// SourceHeader is the metadata key a client identifies itself with.
const SourceHeader = "x-keepclip-source"

// Server implements HistoryServer on top of a service.Service.
type Server struct {
	svc     *service.Service
	token   string // empty = no auth
	version string
}

// New returns a Server backed by svc. token may be empty to disable auth.
func New(svc *service.Service, token, version string) *Server {
	return &Server{svc: svc, token: token, version: version}
}

// GetHistory implements HistoryService.GetHistory.
func (s *Server) GetHistory(ctx context.Context, _ *GetHistoryRequest) (*GetHistoryResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	return &GetHistoryResponse{Entries: history.ToRecords(s.svc.List())}, nil
}

// ClearHistory implements HistoryService.ClearHistory.
func (s *Server) ClearHistory(ctx context.Context, _ *ClearHistoryRequest) (*ClearHistoryResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	removed, err := s.svc.Clear(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ClearHistoryResponse{Removed: len(removed)}, nil
}

// DeleteEntry implements HistoryService.DeleteEntry.
func (s *Server) DeleteEntry(ctx context.Context, req *DeleteEntryRequest) (*DeleteEntryResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	deleted, err := s.svc.Delete(ctx, req.ID, req.Force)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DeleteEntryResponse{Deleted: deleted}, nil
}

// ToggleLock implements HistoryService.ToggleLock.
func (s *Server) ToggleLock(ctx context.Context, req *ToggleLockRequest) (*ToggleLockResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	e, err := s.svc.ToggleLock(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ToggleLockResponse{Entry: history.ToRecord(e)}, nil
}

// CopyToClipboard implements HistoryService.CopyToClipboard.
func (s *Server) CopyToClipboard(ctx context.Context, req *CopyToClipboardRequest) (*CopyToClipboardResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	ok, err := s.svc.CopyToClipboard(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	slog.Debug("copy to clipboard", "id", req.ID, "ok", ok, "source", sourceFromCtx(ctx))
	return &CopyToClipboardResponse{OK: ok}, nil
}

// GetImage implements HistoryService.GetImage.
func (s *Server) GetImage(ctx context.Context, req *GetImageRequest) (*GetImageResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	data, err := s.svc.Image(req.File)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetImageResponse{Data: data}, nil
}

// Status implements HistoryService.Status.
func (s *Server) Status(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	return &StatusResponse{Status: s.svc.Status(), Version: s.version}, nil
}

// Watch implements HistoryService.Watch.
func (s *Server) Watch(_ *WatchRequest, stream WatchStream) error {
	ctx := stream.Context()
	if err := s.auth(ctx); err != nil {
		return err
	}

	addr := addrFromCtx(ctx)
	wp := &watchPeer{
		id:          addr + "/watch/" + time.Now().Format("150405.000000000"),
		source:      sourceFromCtx(ctx),
		addr:        addr,
		ch:          make(chan hub.Event, 16),
		connectedAt: time.Now(),
	}

	h := s.svc.Hub()
	h.Register(wp)
	defer h.Unregister(wp)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-wp.ch:
			out := &WatchEvent{Type: string(ev.Type)}
			if ev.Type != hub.EventCleared {
				r := history.ToRecord(ev.Entry)
				out.Entry = &r
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		}
	}
}

// auth validates the bearer token in ctx metadata. Skipped when s.token is empty.
func (s *Server) auth(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	const prefix = "Bearer "
	tok := vals[0]
	if len(tok) > len(prefix) && tok[:len(prefix)] == prefix {
		tok = tok[len(prefix):]
	}
	if tok != s.token {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

// toStatus maps service errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, history.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, imagestore.ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func sourceFromCtx(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(SourceHeader); len(vals) > 0 {
			return vals[0]
		}
	}
	return addrFromCtx(ctx)
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

// ── watchPeer ──────────────────────────────────────────────────────────────

// watchPeer is a transient hub.Subscriber backed by a Watch stream.
type watchPeer struct {
	id          string
	source      string
	addr        string
	ch          chan hub.Event
	connectedAt time.Time
	lastSeen    atomic.Int64
}

func (p *watchPeer) ID() string { return p.id }

func (p *watchPeer) Info() hub.SubscriberInfo {
	info := hub.SubscriberInfo{
		ID:          p.id,
		Source:      p.source,
		Addr:        p.addr,
		ConnectedAt: p.connectedAt,
	}
	if ls := p.lastSeen.Load(); ls > 0 {
		info.LastSeen = time.Unix(0, ls)
	}
	return info
}

func (p *watchPeer) Send(ev hub.Event) {
	p.lastSeen.Store(time.Now().UnixNano())
	select {
	case p.ch <- ev:
	default:
		slog.Warn("watch peer channel full, dropping", "peer", p.id)
	}
}
