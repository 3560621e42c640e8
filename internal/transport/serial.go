package transport

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when the configuration leaves the rate unset.
const DefaultBaudRate = 115200

// OpenSerial opens a serial port as an 8N1 byte channel.
func OpenSerial(port string, baud int) (Conn, error) {
	if strings.TrimSpace(port) == "" {
		return nil, errors.New("serial port name is required")
	}
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	conn, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return conn, nil
}

// ListPorts enumerates the serial ports present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
