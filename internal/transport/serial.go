package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/term"
)

// serialTransport wraps a USB-CDC/serial bridge some bench rigs expose
// instead of raw bulk endpoints (a board's debug UART, enumerated
// alongside the normal bulk interface). Raw/non-canonical mode is set
// via github.com/pkg/term so no byte is ever interpreted as a line
// terminator or control character.
type serialTransport struct {
	mu           sync.Mutex
	t            *term.Term
	desc         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	closed       bool
}

// OpenSerial opens devPath (e.g. "/dev/ttyUSB0") at baud, switching the
// line into raw mode.
func OpenSerial(devPath string, baud int) (Transport, error) {
	tm, err := term.Open(devPath, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", devPath, err)
	}
	return &serialTransport{
		t:            tm,
		desc:         devPath,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
	}, nil
}

func (t *serialTransport) WriteAll(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	for off := 0; off < len(buf); {
		n, err := t.t.Write(buf[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return t.t.Flush()
}

func (t *serialTransport) ReadExact(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	for off := 0; off < len(buf); {
		n, err := t.t.Read(buf[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}

func (t *serialTransport) SetTimeouts(readTimeout, writeTimeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = readTimeout
	t.writeTimeout = writeTimeout
	_ = t.t.SetReadTimeout(readTimeout)
}

func (t *serialTransport) FlushInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	return t.t.Flush()
}

func (t *serialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.t.Close()
}

func (t *serialTransport) Description() string {
	return "serial:" + t.desc
}
