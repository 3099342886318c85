package address

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	DefaultPatchIP   = "127.0.0.1"
	DefaultPatchPort = 5555
)

type PatchAddr struct {
	ip   string
	port uint16
}

func NewPatchAddr(ip string, port uint16) *PatchAddr {
	return &PatchAddr{ip, port}
}

// NewPatchAddrFromConfig reads patch-ip and patch-port, falling back to the
// loopback listener.
func NewPatchAddrFromConfig() *PatchAddr {
	ip := viper.GetString("patch-ip")
	if ip == "" {
		ip = DefaultPatchIP
	}
	port := viper.GetInt("patch-port")
	if port <= 0 || port > 65535 {
		port = DefaultPatchPort
	}
	return NewPatchAddr(ip, uint16(port))
}

// Get returns the zmq endpoint, e.g. tcp://127.0.0.1:5555.
func (s *PatchAddr) Get() string {
	return fmt.Sprintf("tcp://%v:%v", s.ip, s.port)
}
