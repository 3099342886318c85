// Package patch sends file contents to a live-patch listener.
package patch

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"unicode/utf8"

	"github.com/lualive/livepatch/history"
	log "github.com/lualive/livepatch/logger"
)

type Sender struct {
	endpoint string
	dial     Dialer
	out      io.Writer
}

// NewSender returns a Sender that talks zmq to endpoint and prints replies
// to out.
func NewSender(endpoint string, out io.Writer) *Sender {
	return NewSenderWithDialer(endpoint, out, DialZMQ)
}

func NewSenderWithDialer(endpoint string, out io.Writer, dial Dialer) *Sender {
	return &Sender{endpoint: endpoint, dial: dial, out: out}
}

// Patch reads filename, records it in the file's version history and sends
// it as one message. It blocks until the single reply arrives, then prints
// it followed by a newline. The file is read, checked to be utf-8 text and
// recorded before any connection is made.
func (s *Sender) Patch(ctx context.Context, filename string) error {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	if !utf8.Valid(b) {
		return fmt.Errorf("%v is not valid utf-8", filename)
	}
	if err = history.Save(filename, string(b)); err != nil {
		return err
	}

	req, err := s.dial(ctx, s.endpoint)
	if err != nil {
		return err
	}
	defer req.Close()

	log.Debugf("sending %v (%d bytes) to %v", filename, len(b), s.endpoint)
	reply, err := req.Request(b)
	if err != nil {
		return err
	}
	if !utf8.Valid(reply) {
		return fmt.Errorf("reply from %v is not valid utf-8", s.endpoint)
	}
	_, err = fmt.Fprintln(s.out, string(reply))
	return err
}
