package transport

import (
	"fmt"

	"github.com/tarm/serial"
)

// DefaultBaud is used for serial transports without an explicit rate.
const DefaultBaud = 115200

// OpenSerial opens a UART bridge. Reads block until data arrives.
func OpenSerial(device string, baud int) (Transport, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return port, nil
}
