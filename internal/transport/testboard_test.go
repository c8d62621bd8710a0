package transport

import (
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

// ptyTransport is a Transport backed by a pseudo-terminal pair, letting
// the test suite exercise WriteAll/ReadExact against a real file
// descriptor without any USB hardware (FlushInput is a no-op here). Grounded on the teacher's
// own use of github.com/creack/pty to expose a virtual KISS TNC
// (src/kiss.go in the teacher repo).
type ptyTransport struct {
	master, slave *os.File
}

func newPtyTransport(t *testing.T) (*ptyTransport, *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = master.Close()
		_ = slave.Close()
	})
	return &ptyTransport{master: master, slave: slave}, slave
}

func (p *ptyTransport) WriteAll(buf []byte) error {
	_, err := p.master.Write(buf)
	return err
}

func (p *ptyTransport) ReadExact(buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := p.master.Read(buf[total:])
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}

func (p *ptyTransport) SetTimeouts(time.Duration, time.Duration) {}
func (p *ptyTransport) FlushInput() error                        { return nil }
func (p *ptyTransport) Close() error                              { return p.master.Close() }
func (p *ptyTransport) Description() string                       { return "pty" }

func TestPtyTransportRoundTrip(t *testing.T) {
	tr, slave := newPtyTransport(t)

	go func() {
		buf := make([]byte, 4)
		_, _ = slave.Read(buf)
		_, _ = slave.Write([]byte{buf[0], buf[1], 251, 0})
	}()

	require.NoError(t, tr.WriteAll([]byte{0, 0, 0, 0}))
	resp := make([]byte, 4)
	require.NoError(t, tr.ReadExact(resp))
	require.Equal(t, byte(251), resp[2])
}
