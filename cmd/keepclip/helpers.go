package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.klb.dev/keepclip/internal/grpcservice"
	"go.klb.dev/keepclip/internal/ipc"
	"go.klb.dev/keepclip/internal/tlsconf"
)

// defaultPort is appended to --server/--addr values that carry no port.
const defaultPort = "8752"

// rpcTimeout bounds every unary call a CLI command makes.
const rpcTimeout = 5 * time.Second

func isContainerID(s string) bool {
	if len(s) < 12 || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// defaultSource returns a human-readable identifier for this host.
func defaultSource() string {
	for _, env := range []string{
		"KEEPCLIP_SOURCE",
		"CONTAINER_NAME",
		"COMPOSE_SERVICE",
		"SERVICE_NAME",
		"HOSTNAME_FRIENDLY",
	} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	if isContainerID(h) {
		return "container-" + h[:8]
	}
	return h
}

// withDefaultPort returns addr with defaultPort appended when it has none.
func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, defaultPort)
}

// conn is an open client connection to a daemon.
type conn struct {
	*grpcservice.Client
	cc        *grpc.ClientConn
	transport string
}

func (c *conn) Close() error { return c.cc.Close() }

// connect dials the daemon: the IPC socket unless --server is set.
func connect(v *viper.Viper) (*conn, error) {
	source := v.GetString("source")
	if server := v.GetString("server"); server != "" {
		return dialServer(withDefaultPort(server), v.GetString("token"), source)
	}
	if !ipc.IsRunning() {
		return nil, fmt.Errorf("no keepclip daemon listening on %s (start one with \"keepclip daemon\" or pass --server)", ipc.SocketPath())
	}
	return dialIPC(source)
}

// dialIPC connects to the local IPC Unix socket.
// No auth needed: the socket is local and owner-restricted by the OS.
func dialIPC(source string) (*conn, error) {
	cc, err := grpc.NewClient(
		"unix://"+ipc.SocketPath(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(&clientCreds{source: source}),
		grpc.WithDefaultCallOptions(grpcservice.CallOptions()...),
	)
	if err != nil {
		return nil, fmt.Errorf("dial ipc: %w", err)
	}
	return &conn{
		Client:    grpcservice.NewClient(cc),
		cc:        cc,
		transport: fmt.Sprintf("ipc (%s)", ipc.SocketPath()),
	}, nil
}

// dialServer connects to a daemon's TCP listener over TLS and verifies
// reachability with a Status call. token is used for both TLS key
// derivation and per-RPC auth.
func dialServer(addr, token, source string) (*conn, error) {
	passphrase := token
	if passphrase == "" {
		passphrase = tlsconf.DefaultPassphrase
	}
	creds, err := tlsconf.ClientCredentials(passphrase)
	if err != nil {
		return nil, fmt.Errorf("tls credentials: %w", err)
	}
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(&clientCreds{token: token, source: source, secure: true}),
		grpc.WithDefaultCallOptions(grpcservice.CallOptions()...),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", addr, err)
	}
	client := grpcservice.NewClient(cc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Status(ctx, &grpcservice.StatusRequest{}); err != nil {
		_ = cc.Close()
		return nil, fmt.Errorf("no reachable keepclip daemon at %s: %w", addr, err)
	}
	return &conn{Client: client, cc: cc, transport: fmt.Sprintf("tcp (%s)", addr)}, nil
}

type clientCreds struct {
	token  string
	source string
	secure bool
}

func (c *clientCreds) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	md := make(map[string]string, 2)
	if c.token != "" {
		md["authorization"] = "Bearer " + c.token
	}
	if c.source != "" {
		md[grpcservice.SourceHeader] = c.source
	}
	return md, nil
}

func (c *clientCreds) RequireTransportSecurity() bool { return c.secure }

// rpcContext returns a context bounded by rpcTimeout.
func rpcContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, rpcTimeout)
}
