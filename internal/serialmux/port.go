package serialmux

import "io"

// SerialPorter is the minimal port the mux reads tick lines from. Real
// serial ports, replay fixtures and test doubles all satisfy it.
type SerialPorter interface {
	io.Reader
	io.Closer
}
