package patch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
)

// Requester performs one synchronous request/reply exchange at a time.
type Requester interface {
	Request(payload []byte) ([]byte, error)
	Close() error
}

// Dialer connects a Requester to endpoint.
type Dialer func(ctx context.Context, endpoint string) (Requester, error)

type ZMQRequester struct {
	endpoint string
	sock     zmq4.Socket
}

// DialZMQ opens a REQ socket connected to endpoint. The exchange has no
// timeout: Request blocks until the listener replies or ctx is done.
func DialZMQ(ctx context.Context, endpoint string) (Requester, error) {
	sock := zmq4.NewReq(ctx)
	if err := sock.Dial(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("dial %v: %w", endpoint, err)
	}
	return &ZMQRequester{endpoint: endpoint, sock: sock}, nil
}

func (r *ZMQRequester) Request(payload []byte) ([]byte, error) {
	if err := r.sock.Send(zmq4.NewMsg(payload)); err != nil {
		return nil, fmt.Errorf("send to %v: %w", r.endpoint, err)
	}
	msg, err := r.sock.Recv()
	if err != nil {
		return nil, fmt.Errorf("receive from %v: %w", r.endpoint, err)
	}
	return bytes.Join(msg.Frames, nil), nil
}

func (r *ZMQRequester) Close() error {
	return r.sock.Close()
}
