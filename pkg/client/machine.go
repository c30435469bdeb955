package client

import (
	"net"
	"strconv"

	"github.com/whatsminer-go/whatsminer/pkg/transport"
)

// DefaultPort is the miner API port.
const DefaultPort = transport.DefaultPort

// Machine identifies a device and its admin password.
type Machine struct {
	Host     string
	Port     int
	Password string
}

// Address returns host:port, using DefaultPort when Port is zero.
func (m Machine) Address() string {
	port := m.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(m.Host, strconv.Itoa(port))
}
