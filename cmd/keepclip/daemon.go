package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"

	"go.klb.dev/keepclip/internal/clip"
	"go.klb.dev/keepclip/internal/crypto"
	"go.klb.dev/keepclip/internal/gateway"
	"go.klb.dev/keepclip/internal/grpcservice"
	"go.klb.dev/keepclip/internal/history"
	"go.klb.dev/keepclip/internal/hub"
	"go.klb.dev/keepclip/internal/imagestore"
	"go.klb.dev/keepclip/internal/ipc"
	"go.klb.dev/keepclip/internal/poller"
	"go.klb.dev/keepclip/internal/service"
	"go.klb.dev/keepclip/internal/store"
	"go.klb.dev/keepclip/internal/tlsconf"
)

// imageDirName is the directory inside data-dir holding image payloads.
const imageDirName = "clipboard-images"

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the clipboard and serve the history",
		Long: `Starts the keepclip daemon. It polls the system clipboard, records every
new text or PNG image in the history, and persists the history after each
change. Other keepclip commands reach it over the IPC socket.

With --addr the daemon also listens on TCP. gRPC and HTTP/JSON share the
port; both are TLS-encrypted with a key derived from --token.

Config file search order:
  /etc/keepclip/keepclip.toml
  $HOME/.config/keepclip/keepclip.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → KEEPCLIP_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.Duration("interval", poller.DefaultInterval, "clipboard poll interval")
	f.Int("capacity", history.DefaultCapacity, "maximum number of history entries")
	f.String("data-dir", defaultDataDir(), "directory holding the history and image files")
	f.String("store", string(store.KindJSON), "history store: json|bolt|sqlite")
	f.String("addr", "", "optional TCP listen address for remote clients (e.g. 127.0.0.1:8752)")
	f.String("token", "", "shared secret for TCP clients (empty = no auth)")
	f.Bool("encrypt", false, "encrypt the history document with a key derived from --token")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(parent context.Context, v *viper.Viper) error {
	setupLogging(v)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dataDir := v.GetString("data-dir")
	token := v.GetString("token")
	kind := store.Kind(v.GetString("store"))

	var sealer *crypto.Sealer
	if v.GetBool("encrypt") {
		var err error
		if sealer, err = crypto.NewSealer(token); err != nil {
			return fmt.Errorf("--encrypt: %w", err)
		}
	}

	persist, err := store.Open(ctx, kind, dataDir, sealer)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := persist.Close(); err != nil {
			slog.Warn("store close failed", "err", err)
		}
	}()

	hist, err := service.Load(ctx, persist, v.GetInt("capacity"))
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	images, err := imagestore.New(filepath.Join(dataDir, imageDirName))
	if err != nil {
		return fmt.Errorf("image store: %w", err)
	}

	backend := clip.New()
	defer backend.Close()

	svc := service.New(hist, images, persist, backend, hub.New())
	if _, err := svc.PruneOrphans(); err != nil {
		slog.Warn("orphan image cleanup failed", "err", err)
	}

	slog.Info("keepclip daemon starting",
		"version", Version,
		"backend", backend.Name(),
		"store", kind,
		"data_dir", dataDir,
		"entries", hist.Len(),
		"capacity", hist.Capacity(),
		"encrypted", sealer != nil,
	)

	ipcLn, err := ipc.Listen()
	if err != nil {
		return fmt.Errorf("ipc: %w", err)
	}
	ipcSrv := grpc.NewServer(grpcservice.ServerOptions()...)
	grpcservice.RegisterHistoryServer(ipcSrv, grpcservice.New(svc, "", Version))
	go func() {
		if err := ipcSrv.Serve(ipcLn); err != nil {
			slog.Error("ipc server stopped", "err", err)
		}
	}()
	slog.Info("IPC socket listening", "path", ipc.SocketPath())

	var tcp *tcpServer
	if addr := v.GetString("addr"); addr != "" {
		tcp, err = serveTCP(withDefaultPort(addr), grpcservice.New(svc, token, Version), token)
		if err != nil {
			ipcSrv.Stop()
			return err
		}
	}

	poller.New(backend, svc, v.GetDuration("interval")).Run(ctx)

	slog.Info("keepclip daemon stopping")
	if tcp != nil {
		tcp.stop()
	}
	ipcSrv.Stop()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Flush(flushCtx); err != nil {
		return err
	}
	if _, err := svc.PruneOrphans(); err != nil {
		slog.Warn("orphan image cleanup failed", "err", err)
	}
	return nil
}

// tcpServer is the TLS listener shared by gRPC and the HTTP/JSON gateway.
type tcpServer struct {
	mux  cmux.CMux
	grpc *grpc.Server
	http *http.Server
}

// serveTCP listens on addr and splits TLS connections between gRPC (HTTP/2
// with content-type application/grpc) and the HTTP/JSON gateway.
func serveTCP(addr string, srv *grpcservice.Server, token string) (*tcpServer, error) {
	passphrase := token
	if passphrase == "" {
		passphrase = tlsconf.DefaultPassphrase
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	tlsLn, err := tlsconf.Listener(ln, passphrase)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("tls: %w", err)
	}

	gw, err := gateway.New(srv)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("gateway: %w", err)
	}

	t := &tcpServer{
		mux:  cmux.New(tlsLn),
		grpc: grpc.NewServer(grpcservice.ServerOptions()...),
		// h2c serves gateway clients that negotiated h2 via ALPN; cmux hides
		// the *tls.Conn from net/http so it cannot upgrade on its own.
		http: &http.Server{
			Handler:           h2c.NewHandler(gw, &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	grpcservice.RegisterHistoryServer(t.grpc, srv)

	grpcLn := t.mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpLn := t.mux.Match(cmux.Any())

	go func() {
		if err := t.grpc.Serve(grpcLn); err != nil {
			slog.Debug("tcp grpc server stopped", "err", err)
		}
	}()
	go func() {
		if err := t.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Debug("tcp http server stopped", "err", err)
		}
	}()
	go func() {
		if err := t.mux.Serve(); err != nil {
			slog.Debug("tcp listener stopped", "err", err)
		}
	}()

	slog.Info("TCP listening", "addr", ln.Addr(), "auth", token != "")
	return t, nil
}

func (t *tcpServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = t.http.Shutdown(ctx)
	t.grpc.Stop()
	t.mux.Close()
}
