package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// ErrPortClosed is returned by TestableSerialPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort is an in-memory SerialPorter. Reads block until data
// is added or the port is closed, like a real port with no timeout.
type TestableSerialPort struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      bytes.Buffer
	eof      bool
	closed   bool
	readErr  error
	closeErr error
}

// NewTestableSerialPort returns an empty port.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// AddReadData appends bytes for subsequent reads.
func (p *TestableSerialPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.Write(data)
	p.cond.Broadcast()
}

// AddLines appends each line followed by a newline.
func (p *TestableSerialPort) AddLines(lines ...string) {
	for _, l := range lines {
		p.AddReadData([]byte(l + "\n"))
	}
}

// SetEOF makes reads return io.EOF once the buffer drains.
func (p *TestableSerialPort) SetEOF() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eof = true
	p.cond.Broadcast()
}

// FailNextRead makes the next read return err.
func (p *TestableSerialPort) FailNextRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
	p.cond.Broadcast()
}

// SetCloseError sets the error Close returns.
func (p *TestableSerialPort) SetCloseError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeErr = err
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.buf.Len() == 0 && !p.closed && !p.eof && p.readErr == nil {
		p.cond.Wait()
	}
	switch {
	case p.closed:
		return 0, ErrPortClosed
	case p.readErr != nil:
		err := p.readErr
		p.readErr = nil
		return 0, err
	}
	// bytes.Buffer returns io.EOF once drained.
	return p.buf.Read(b)
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return p.closeErr
}

// Closed reports whether Close was called.
func (p *TestableSerialPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
