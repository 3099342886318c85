package listen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/go-zeromq/zmq4"
	log "github.com/lualive/livepatch/logger"
	"github.com/lualive/livepatch/storage"
)

const PatchedMessage = "Successfully patched."

// Reply is the JSON document sent back for every patch, either
// {"result": ...} or {"error": ...}.
type Reply struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (r Reply) Marshal() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"error":"unable to encode reply"}`)
	}
	return b
}

func errorReply(format string, args ...interface{}) Reply {
	return Reply{Error: fmt.Sprintf(format, args...)}
}

type Server struct {
	ctx      context.Context
	sock     zmq4.Socket
	endpoint string
	journal  *storage.Journal
	closed   int32

	served     int64
	avgSize    *movingaverage.MovingAverage
	avgLatency *movingaverage.MovingAverage
}

// NewServer binds a REP socket on endpoint. Every accepted patch is appended
// to journal.
func NewServer(ctx context.Context, endpoint string, journal *storage.Journal) (*Server, error) {
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("listen on %v: %w", endpoint, err)
	}
	s := &Server{
		ctx:        ctx,
		sock:       sock,
		endpoint:   endpoint,
		journal:    journal,
		avgSize:    movingaverage.New(10),
		avgLatency: movingaverage.New(10),
	}
	// resolve port 0 to the port actually bound
	if strings.HasPrefix(endpoint, "tcp://") && sock.Addr() != nil {
		s.endpoint = "tcp://" + sock.Addr().String()
	}
	return s, nil
}

func (s *Server) Endpoint() string {
	return s.endpoint
}

// Serve answers patches one at a time until the context is done or the
// server is closed.
func (s *Server) Serve() error {
	log.Infof("Serving patches at %v", s.endpoint)
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if s.stopped() {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		start := time.Now()
		payload := bytes.Join(msg.Frames, nil)
		reply := s.Handle(payload)
		s.avgSize.Add(float64(len(payload)))
		s.avgLatency.Add(float64(time.Since(start).Microseconds()))
		n := atomic.AddInt64(&s.served, 1)
		if reply.Error != "" {
			log.Warningf("patch %v rejected: %v", n, reply.Error)
		}
		log.Infof("patch %v: %v bytes, avg size %.1f bytes, avg latency %.1fus",
			n, len(payload), s.avgSize.Avg(), s.avgLatency.Avg())
		if err = s.sock.Send(zmq4.NewMsg(reply.Marshal())); err != nil {
			if s.stopped() {
				return nil
			}
			return fmt.Errorf("send reply: %w", err)
		}
	}
}

// Handle validates a patch and journals it. An empty patch is a valid, empty
// chunk and is accepted.
func (s *Server) Handle(payload []byte) Reply {
	if len(payload) > storage.MaxRecordSize {
		return errorReply("patch too large: %d bytes (max %d)", len(payload), storage.MaxRecordSize)
	}
	if !utf8.Valid(payload) {
		return errorReply("patch is not valid utf-8")
	}
	seq, err := s.journal.Append(string(payload))
	if err != nil {
		return errorReply("%v", err)
	}
	log.Debugf("journaled patch as record %v", seq)
	return Reply{Result: PatchedMessage}
}

// Served returns the number of requests answered so far.
func (s *Server) Served() int64 {
	return atomic.LoadInt64(&s.served)
}

func (s *Server) stopped() bool {
	return atomic.LoadInt32(&s.closed) == 1 || s.ctx.Err() != nil
}

func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	return s.sock.Close()
}
