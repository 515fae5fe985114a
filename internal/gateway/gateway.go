// Package gateway exposes the history service as HTTP/JSON using the
// grpc-gateway runtime mux and its JSONPb marshaler, so error bodies are
// the protojson form of the gRPC status. Requests are dispatched straight to the
// in-process HistoryServer, so token auth and error codes match gRPC.
package gateway

import (
	"context"
	"net"
	"net/http"
	"strconv"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/metadata"

	"go.klb.dev/keepclip/internal/grpcservice"
)

// New returns a mux serving:
//
//	GET    /v1/history
//	DELETE /v1/history
//	DELETE /v1/history/{id}           (?force=true for locked entries)
//	POST   /v1/history/{id}/lock
//	POST   /v1/history/{id}/copy
//	GET    /v1/images/{file}
//	GET    /v1/status
func New(srv grpcservice.HistoryServer) (*gwruntime.ServeMux, error) {
	g := &gateway{srv: srv, marshaler: &gwruntime.JSONPb{}}
	g.mux = gwruntime.NewServeMux(gwruntime.WithMarshalerOption(gwruntime.MIMEWildcard, g.marshaler))

	routes := []struct {
		method, pattern string
		h               gwruntime.HandlerFunc
	}{
		{http.MethodGet, "/v1/history", g.getHistory},
		{http.MethodDelete, "/v1/history", g.clearHistory},
		{http.MethodDelete, "/v1/history/{id}", g.deleteEntry},
		{http.MethodPost, "/v1/history/{id}/lock", g.toggleLock},
		{http.MethodPost, "/v1/history/{id}/copy", g.copyToClipboard},
		{http.MethodGet, "/v1/images/{file}", g.getImage},
		{http.MethodGet, "/v1/status", g.status},
	}
	for _, rt := range routes {
		if err := g.mux.HandlePath(rt.method, rt.pattern, rt.h); err != nil {
			return nil, err
		}
	}
	return g.mux, nil
}

type gateway struct {
	srv       grpcservice.HistoryServer
	mux       *gwruntime.ServeMux
	marshaler gwruntime.Marshaler
}

func (g *gateway) getHistory(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ctx := incoming(r)
	resp, err := g.srv.GetHistory(ctx, &grpcservice.GetHistoryRequest{})
	g.reply(ctx, w, r, resp, err)
}

func (g *gateway) clearHistory(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ctx := incoming(r)
	resp, err := g.srv.ClearHistory(ctx, &grpcservice.ClearHistoryRequest{})
	g.reply(ctx, w, r, resp, err)
}

func (g *gateway) deleteEntry(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ctx := incoming(r)
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	resp, err := g.srv.DeleteEntry(ctx, &grpcservice.DeleteEntryRequest{ID: params["id"], Force: force})
	g.reply(ctx, w, r, resp, err)
}

func (g *gateway) toggleLock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ctx := incoming(r)
	resp, err := g.srv.ToggleLock(ctx, &grpcservice.ToggleLockRequest{ID: params["id"]})
	g.reply(ctx, w, r, resp, err)
}

func (g *gateway) copyToClipboard(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ctx := incoming(r)
	resp, err := g.srv.CopyToClipboard(ctx, &grpcservice.CopyToClipboardRequest{ID: params["id"]})
	g.reply(ctx, w, r, resp, err)
}

func (g *gateway) getImage(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ctx := incoming(r)
	resp, err := g.srv.GetImage(ctx, &grpcservice.GetImageRequest{File: params["file"]})
	if err != nil {
		gwruntime.HTTPError(ctx, g.mux, g.marshaler, w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Data)))
	_, _ = w.Write(resp.Data)
}

func (g *gateway) status(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ctx := incoming(r)
	resp, err := g.srv.Status(ctx, &grpcservice.StatusRequest{})
	g.reply(ctx, w, r, resp, err)
}

func (g *gateway) reply(ctx context.Context, w http.ResponseWriter, r *http.Request, resp any, err error) {
	if err != nil {
		gwruntime.HTTPError(ctx, g.mux, g.marshaler, w, r, err)
		return
	}
	data, err := g.marshaler.Marshal(resp)
	if err != nil {
		gwruntime.HTTPError(ctx, g.mux, g.marshaler, w, r, err)
		return
	}
	w.Header().Set("Content-Type", g.marshaler.ContentType(resp))
	_, _ = w.Write(data)
}

// incoming carries the HTTP auth and source headers into gRPC metadata so
// the HistoryServer sees the same credentials a gRPC client would send.
func incoming(r *http.Request) context.Context {
	md := metadata.MD{}
	if v := r.Header.Get("Authorization"); v != "" {
		md.Set("authorization", v)
	}
	if v := r.Header.Get(grpcservice.SourceHeader); v != "" {
		md.Set(grpcservice.SourceHeader, v)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		md.Set(grpcservice.SourceHeader, "http:"+host)
	}
	return metadata.NewIncomingContext(r.Context(), md)
}
