package grpcservice

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"math/rand/v2"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"go.klb.dev/keepclip/internal/clip"
	"go.klb.dev/keepclip/internal/history"
	"go.klb.dev/keepclip/internal/hub"
	"go.klb.dev/keepclip/internal/imagestore"
	"go.klb.dev/keepclip/internal/service"
	"go.klb.dev/keepclip/internal/store/jsonfile"
)

func newService(t *testing.T) (*service.Service, *clip.Memory) {
	t.Helper()
	dir := t.TempDir()
	images, err := imagestore.New(filepath.Join(dir, "images"))
	require.NoError(t, err)
	backend := clip.NewMemory()
	svc := service.New(history.New(10, nil), images,
		jsonfile.New(filepath.Join(dir, "history.json"), nil), backend, hub.New())
	return svc, backend
}

func startServer(t *testing.T, svc *service.Service, token string) *Client {
	t.Helper()
	ln := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(ServerOptions()...)
	RegisterHistoryServer(gs, New(svc, token, "test"))
	go func() { _ = gs.Serve(ln) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ln.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestHistoryService(t *testing.T) {
	ctx := context.Background()
	svc, backend := newService(t)
	client := startServer(t, svc, "")

	_, err := svc.Reconcile(ctx, service.Observation{Text: "first"})
	require.NoError(t, err)
	_, err = svc.Reconcile(ctx, service.Observation{Text: "second"})
	require.NoError(t, err)

	list, err := client.GetHistory(ctx, &GetHistoryRequest{})
	require.NoError(t, err)
	require.Len(t, list.Entries, 2)
	assert.Equal(t, "second", list.Entries[0].Content)
	assert.Equal(t, history.KindText, list.Entries[0].Type)
	first := list.Entries[1]

	t.Run("toggle lock", func(t *testing.T) {
		resp, err := client.ToggleLock(ctx, &ToggleLockRequest{ID: first.ID})
		require.NoError(t, err)
		assert.True(t, resp.Entry.Locked)

		_, err = client.ToggleLock(ctx, &ToggleLockRequest{ID: "missing"})
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("copy to clipboard", func(t *testing.T) {
		resp, err := client.CopyToClipboard(ctx, &CopyToClipboardRequest{ID: first.ID})
		require.NoError(t, err)
		assert.True(t, resp.OK)
		text, _ := backend.ReadText()
		assert.Equal(t, "first", text)

		_, err = client.CopyToClipboard(ctx, &CopyToClipboardRequest{ID: "missing"})
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("status", func(t *testing.T) {
		resp, err := client.Status(ctx, &StatusRequest{})
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Entries)
		assert.Equal(t, 1, resp.Locked)
		assert.Equal(t, "test", resp.Version)
	})

	t.Run("image errors", func(t *testing.T) {
		_, err := client.GetImage(ctx, &GetImageRequest{File: "../etc/passwd"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		_, err = client.GetImage(ctx, &GetImageRequest{File: "1.png"})
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("clear keeps locked", func(t *testing.T) {
		resp, err := client.ClearHistory(ctx, &ClearHistoryRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Removed)

		list, err := client.GetHistory(ctx, &GetHistoryRequest{})
		require.NoError(t, err)
		require.Len(t, list.Entries, 1)
		assert.Equal(t, first.ID, list.Entries[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		resp, err := client.DeleteEntry(ctx, &DeleteEntryRequest{ID: first.ID})
		require.NoError(t, err)
		assert.False(t, resp.Deleted, "locked entries need force")

		resp, err = client.DeleteEntry(ctx, &DeleteEntryRequest{ID: first.ID, Force: true})
		require.NoError(t, err)
		assert.True(t, resp.Deleted)

		resp, err = client.DeleteEntry(ctx, &DeleteEntryRequest{ID: first.ID})
		require.NoError(t, err)
		assert.False(t, resp.Deleted)
	})
}

func TestLargeMessages(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	client := startServer(t, svc, "")

	const entrySize = 500 << 10
	for i := 0; i < 10; i++ {
		text := strings.Repeat(string(rune('a'+i)), entrySize)
		_, err := svc.Reconcile(ctx, service.Observation{Text: text})
		require.NoError(t, err)
	}

	list, err := client.GetHistory(ctx, &GetHistoryRequest{})
	require.NoError(t, err)
	require.Len(t, list.Entries, 10)
	assert.Len(t, list.Entries[0].Content, entrySize)

	img := image.NewNRGBA(image.Rect(0, 0, 1100, 1100))
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Uint32())
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, img))
	require.Greater(t, buf.Len(), 4<<20)

	_, err = svc.Reconcile(ctx, service.Observation{Image: buf.Bytes(), ImageHash: imagestore.Hash(buf.Bytes())})
	require.NoError(t, err)
	list, err = client.GetHistory(ctx, &GetHistoryRequest{})
	require.NoError(t, err)
	require.Equal(t, history.KindImage, list.Entries[0].Type)

	got, err := client.GetImage(ctx, &GetImageRequest{File: list.Entries[0].Content})
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), got.Data)
}

func TestWatch(t *testing.T) {
	svc, _ := newService(t)
	client := startServer(t, svc, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Watch(ctx, &WatchRequest{})
	require.NoError(t, err)

	// The subscriber registers asynchronously once the stream is served.
	require.Eventually(t, func() bool {
		return len(svc.Hub().Subscribers()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = svc.Reconcile(ctx, service.Observation{Text: "watched"})
	require.NoError(t, err)
	_, err = svc.Clear(ctx)
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(hub.EventChanged), ev.Type)
	require.NotNil(t, ev.Entry)
	assert.Equal(t, "watched", ev.Entry.Content)

	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(hub.EventCleared), ev.Type)
	assert.Nil(t, ev.Entry)
}

func TestAuth(t *testing.T) {
	svc, _ := newService(t)
	client := startServer(t, svc, "s3cret")

	_, err := client.GetHistory(context.Background(), &GetHistoryRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer wrong")
	_, err = client.GetHistory(ctx, &GetHistoryRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx = metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer s3cret")
	_, err = client.GetHistory(ctx, &GetHistoryRequest{})
	assert.NoError(t, err)
}
