// Package transport implements the framed byte-stream endpoint to one
// board, over either a USB bulk pipe or a TCP socket (spec §4.1), plus
// discovery and board ordering (spec §6).
package transport

import (
	"errors"
	"time"
)

// Default timeouts applied to a freshly opened Transport (spec §4.1).
const (
	DefaultReadTimeout  = 5000 * time.Millisecond
	DefaultWriteTimeout = 5000 * time.Millisecond
)

// ErrClosed is returned by Write/Read once the transport has been closed
// or the underlying peer went away (spec §7 TransportError: closed).
var ErrClosed = errors.New("transport closed")

// ErrTimeout is returned when a read or write did not complete within
// its configured deadline (spec §7 TransportError: timeout).
var ErrTimeout = errors.New("transport timeout")

// Transport is the framed byte-stream contract to one board (spec §4.1).
// Implementations: tcpTransport (TCP socket), usbTransport (Linux
// USB bulk pipe) and serialTransport (serial/USB-CDC bridge). No partial writes are ever surfaced to the caller:
// WriteAll either writes every byte or returns an error.
type Transport interface {
	// WriteAll writes every byte of buf or returns an error; no partial
	// writes are surfaced.
	WriteAll(buf []byte) error

	// ReadExact blocks until len(buf) bytes have arrived, or fails with
	// ErrClosed/ErrTimeout.
	ReadExact(buf []byte) error

	// SetTimeouts adjusts the read/write deadlines applied to
	// subsequent calls.
	SetTimeouts(readTimeout, writeTimeout time.Duration)

	// FlushInput discards any bytes currently buffered for read,
	// without blocking. No caller in this module invokes it.
	FlushInput() error

	// Close releases the underlying endpoint. Idempotent.
	Close() error

	// Description is a human-readable identifier for diagnostics
	// ("tcp://host:port", "usb:0001", ...).
	Description() string
}
