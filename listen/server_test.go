package listen

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/lualive/livepatch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

func newJournal(t *testing.T) *storage.Journal {
	j, err := storage.OpenJournal(filepath.Join(t.TempDir(), "journal.log"))
	require.Nil(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func request(t *testing.T, ctx context.Context, endpoint string, payload []byte) Reply {
	req := zmq4.NewReq(ctx)
	defer req.Close()
	require.Nil(t, req.Dial(endpoint))
	require.Nil(t, req.Send(zmq4.NewMsg(payload)))
	msg, err := req.Recv()
	require.Nil(t, err)
	var r Reply
	require.Nil(t, json.Unmarshal(bytes.Join(msg.Frames, nil), &r))
	return r
}

func TestReplyMarshal(t *testing.T) {
	assert.Equal(t, `{"result":"Successfully patched."}`, string(Reply{Result: PatchedMessage}.Marshal()))
	assert.Equal(t, `{"error":"boom"}`, string(Reply{Error: "boom"}.Marshal()))
}

func TestHandle(t *testing.T) {
	j := newJournal(t)
	s := &Server{journal: j}

	assert.Equal(t, Reply{Result: PatchedMessage}, s.Handle([]byte("x = 1")))
	assert.Equal(t, Reply{Result: PatchedMessage}, s.Handle(nil))
	assert.Equal(t, "patch is not valid utf-8", s.Handle([]byte{0xff}).Error)
	assert.True(t, strings.HasPrefix(s.Handle(make([]byte, storage.MaxRecordSize+1)).Error, "patch too large"))

	assert.Equal(t, int64(2), j.Len())
	r, err := j.Read(0)
	assert.Nil(t, err)
	assert.Equal(t, "x = 1", r)
	r, err = j.Read(1)
	assert.Nil(t, err)
	assert.Equal(t, "", r)
}

func TestHandleClosedJournal(t *testing.T) {
	j, err := storage.OpenJournal(filepath.Join(t.TempDir(), "journal.log"))
	require.Nil(t, err)
	require.Nil(t, j.Close())
	s := &Server{journal: j}
	assert.Equal(t, "Journal closed", s.Handle([]byte("x")).Error)
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j := newJournal(t)

	s, err := NewServer(ctx, "tcp://127.0.0.1:0", j)
	require.Nil(t, err)
	assert.NotEqual(t, "tcp://127.0.0.1:0", s.Endpoint())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	assert.Equal(t, Reply{Result: PatchedMessage}, request(t, ctx, s.Endpoint(), []byte("print('a')")))
	assert.Equal(t, Reply{Result: PatchedMessage}, request(t, ctx, s.Endpoint(), []byte{}))
	assert.Equal(t, Reply{Error: "patch is not valid utf-8"}, request(t, ctx, s.Endpoint(), []byte{0xff}))
	assert.Equal(t, Reply{Result: PatchedMessage}, request(t, ctx, s.Endpoint(), []byte("print('b')")))

	assert.Equal(t, int64(4), s.Served())
	assert.Equal(t, int64(3), j.Len())
	r, err := j.Read(2)
	assert.Nil(t, err)
	assert.Equal(t, "print('b')", r)

	assert.Nil(t, s.Close())
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return after Close")
	}
}

func TestHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	grpcServer, healthServer := StartHealth(lis)
	defer grpcServer.Stop()

	conn, err := grpc.Dial(lis.Addr().String(), grpc.WithInsecure())
	require.Nil(t, err)
	defer conn.Close()
	client := healthgrpc.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthgrpc.HealthCheckRequest{})
	require.Nil(t, err)
	assert.Equal(t, healthgrpc.HealthCheckResponse_SERVING, resp.Status)

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
	resp, err = client.Check(ctx, &healthgrpc.HealthCheckRequest{})
	require.Nil(t, err)
	assert.Equal(t, healthgrpc.HealthCheckResponse_NOT_SERVING, resp.Status)
}
