//go:build !linux

package transport

import (
	"fmt"
	"os"
)

// OpenDevice opens a device node or file for reading and writing.
func OpenDevice(path string) (Transport, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
