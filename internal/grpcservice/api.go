package grpcservice

import (
	"context"

	"google.golang.org/grpc"

	"go.klb.dev/keepclip/internal/history"
	"go.klb.dev/keepclip/internal/service"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "keepclip.v1.HistoryService"

// MaxMessageSize bounds a single message in either direction. GetHistory
// carries the whole history and GetImage a whole PNG, so gRPC's 4 MiB
// default is far too small.
const MaxMessageSize = 512 << 20

// ServerOptions returns the options every HistoryService server needs.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	}
}

// CallOptions returns the options every HistoryService call uses. Client
// methods apply them already; they are exported for grpc.WithDefaultCallOptions.
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{
		grpc.CallContentSubtype(CodecName),
		grpc.MaxCallRecvMsgSize(MaxMessageSize),
		grpc.MaxCallSendMsgSize(MaxMessageSize),
	}
}

type (
	GetHistoryRequest  struct{}
	GetHistoryResponse struct {
		Entries []history.Record `json:"entries"`
	}

	ClearHistoryRequest  struct{}
	ClearHistoryResponse struct {
		Removed int `json:"removed"`
	}

	DeleteEntryRequest struct {
		ID    string `json:"id"`
		Force bool   `json:"force,omitempty"`
	}
	DeleteEntryResponse struct {
		Deleted bool `json:"deleted"`
	}

	ToggleLockRequest struct {
		ID string `json:"id"`
	}
	ToggleLockResponse struct {
		Entry history.Record `json:"entry"`
	}

	CopyToClipboardRequest struct {
		ID string `json:"id"`
	}
	CopyToClipboardResponse struct {
		OK bool `json:"ok"`
	}

	GetImageRequest struct {
		File string `json:"file"`
	}
	GetImageResponse struct {
		Data []byte `json:"data"`
	}

	StatusRequest  struct{}
	StatusResponse struct {
		service.Status
		Version string `json:"version"`
	}

	WatchRequest struct{}
	// WatchEvent is one history event. Entry is nil for "cleared".
	WatchEvent struct {
		Type  string          `json:"type"`
		Entry *history.Record `json:"entry,omitempty"`
	}
)

// HistoryServer is the server API of the history service.
type HistoryServer interface {
	GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error)
	ClearHistory(context.Context, *ClearHistoryRequest) (*ClearHistoryResponse, error)
	DeleteEntry(context.Context, *DeleteEntryRequest) (*DeleteEntryResponse, error)
	ToggleLock(context.Context, *ToggleLockRequest) (*ToggleLockResponse, error)
	CopyToClipboard(context.Context, *CopyToClipboardRequest) (*CopyToClipboardResponse, error)
	GetImage(context.Context, *GetImageRequest) (*GetImageResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Watch(*WatchRequest, WatchStream) error
}

// WatchStream is the server side of a Watch call.
type WatchStream interface {
	Send(*WatchEvent) error
	Context() context.Context
}

// RegisterHistoryServer registers srv with s.
func RegisterHistoryServer(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary adapts a typed HistoryServer method to a grpc.MethodHandler.
func unary[Req, Resp any](name string, call func(HistoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HistoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(HistoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

type watchServerStream struct{ grpc.ServerStream }

func (s watchServerStream) Send(ev *WatchEvent) error { return s.ServerStream.SendMsg(ev) }

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetHistory", HistoryServer.GetHistory),
		unary("ClearHistory", HistoryServer.ClearHistory),
		unary("DeleteEntry", HistoryServer.DeleteEntry),
		unary("ToggleLock", HistoryServer.ToggleLock),
		unary("CopyToClipboard", HistoryServer.CopyToClipboard),
		unary("GetImage", HistoryServer.GetImage),
		unary("Status", HistoryServer.Status),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(WatchRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return srv.(HistoryServer).Watch(in, watchServerStream{stream})
		},
	}},
	Metadata: "keepclip/v1/history",
}

// Client is a typed client for the history service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client on cc. Calls use the JSON codec.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(CallOptions(), opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+name, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error) {
	return invoke[GetHistoryResponse](ctx, c.cc, "GetHistory", in, opts)
}

func (c *Client) ClearHistory(ctx context.Context, in *ClearHistoryRequest, opts ...grpc.CallOption) (*ClearHistoryResponse, error) {
	return invoke[ClearHistoryResponse](ctx, c.cc, "ClearHistory", in, opts)
}

func (c *Client) DeleteEntry(ctx context.Context, in *DeleteEntryRequest, opts ...grpc.CallOption) (*DeleteEntryResponse, error) {
	return invoke[DeleteEntryResponse](ctx, c.cc, "DeleteEntry", in, opts)
}

func (c *Client) ToggleLock(ctx context.Context, in *ToggleLockRequest, opts ...grpc.CallOption) (*ToggleLockResponse, error) {
	return invoke[ToggleLockResponse](ctx, c.cc, "ToggleLock", in, opts)
}

func (c *Client) CopyToClipboard(ctx context.Context, in *CopyToClipboardRequest, opts ...grpc.CallOption) (*CopyToClipboardResponse, error) {
	return invoke[CopyToClipboardResponse](ctx, c.cc, "CopyToClipboard", in, opts)
}

func (c *Client) GetImage(ctx context.Context, in *GetImageRequest, opts ...grpc.CallOption) (*GetImageResponse, error) {
	return invoke[GetImageResponse](ctx, c.cc, "GetImage", in, opts)
}

func (c *Client) Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, "Status", in, opts)
}

// WatchClient receives history events from a Watch call.
type WatchClient struct{ grpc.ClientStream }

// Recv blocks for the next event.
func (w *WatchClient) Recv() (*WatchEvent, error) {
	ev := new(WatchEvent)
	if err := w.ClientStream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Watch opens a stream of history events.
func (c *Client) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (*WatchClient, error) {
	opts = append(CallOptions(), opts...)
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+ServiceName+"/Watch", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchClient{stream}, nil
}
