package transport

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// OpenTCP connects to a host:port byte channel, typically a ser2net-style
// serial bridge. Also the transport the loopback tests run over.
func OpenTCP(addr string) (Conn, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("tcp address is required")
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
