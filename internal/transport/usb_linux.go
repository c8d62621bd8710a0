//go:build linux

package transport

import (
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Bulk endpoint addresses for this instrument's USB interface (spec §6):
// 0x81 is the IN bulk pipe the board streams payloads from, 0x02 is the
// OUT bulk pipe commands are written to. Max packet size is 512 bytes
// (high-speed bulk).
const (
	bulkEndpointIn  = 0x81
	bulkEndpointOut = 0x02
)

// usbdevfsBulkTransfer mirrors struct usbdevfs_bulktransfer from
// <linux/usbdevice_fs.h>: {ep, len, timeout_ms, data}, padded to match
// the kernel's layout on 64-bit hosts.
type usbdevfsBulkTransfer struct {
	ep      uint32
	length  uint32
	timeout uint32
	_       uint32 // struct padding before the pointer field
	data    unsafe.Pointer
}

// usbdevfsBulkIoctl is USBDEVFS_BULK, i.e. _IOWR('U', 2, struct
// usbdevfs_bulktransfer) as defined by the Linux USB device filesystem.
const usbdevfsBulkIoctl = 0xc0185502

// usbTransport implements Transport directly against a usbfs device
// node (/dev/bus/usb/BBB/DDD), bypassing any kernel driver — the board
// exposes a single bulk IN/OUT pair and nothing else needs claiming.
type usbTransport struct {
	mu           sync.Mutex
	f            *os.File
	desc         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	closed       bool
}

// OpenUSB opens the usbfs node at devPath (e.g. "/dev/bus/usb/001/007").
func OpenUSB(devPath string) (Transport, error) {
	f, err := os.OpenFile(devPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open usb device %s: %w", devPath, err)
	}
	return &usbTransport{
		f:            f,
		desc:         devPath,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
	}, nil
}

func (t *usbTransport) bulk(ep uint32, buf []byte, timeout time.Duration) error {
	xfer := usbdevfsBulkTransfer{
		ep:      ep,
		length:  uint32(len(buf)),
		timeout: uint32(timeout.Milliseconds()),
	}
	if len(buf) > 0 {
		xfer.data = unsafe.Pointer(&buf[0])
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, t.f.Fd(), usbdevfsBulkIoctl, uintptr(unsafe.Pointer(&xfer)))
	if errno == unix.ETIMEDOUT {
		return ErrTimeout
	}
	if errno == unix.ENODEV || errno == unix.ENOENT {
		return ErrClosed
	}
	if errno != 0 {
		return fmt.Errorf("usb bulk transfer on ep %#x: %w", ep, errno)
	}
	return nil
}

func (t *usbTransport) WriteAll(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	// usbfs bulk transfers are already all-or-nothing per call; the
	// board's max packet is 512 bytes so split larger writes.
	for off := 0; off < len(buf); {
		end := off + 512
		if end > len(buf) {
			end = len(buf)
		}
		if err := t.bulk(bulkEndpointOut, buf[off:end], t.writeTimeout); err != nil {
			return err
		}
		off = end
	}
	return nil
}

func (t *usbTransport) ReadExact(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	for off := 0; off < len(buf); {
		end := off + 512
		if end > len(buf) {
			end = len(buf)
		}
		if err := t.bulk(bulkEndpointIn, buf[off:end], t.readTimeout); err != nil {
			return err
		}
		off = end
	}
	return nil
}

func (t *usbTransport) SetTimeouts(readTimeout, writeTimeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = readTimeout
	t.writeTimeout = writeTimeout
}

func (t *usbTransport) FlushInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	var scratch [512]byte
	for {
		if err := t.bulk(bulkEndpointIn, scratch[:], 5*time.Millisecond); err != nil {
			return nil // timeout/empty is the expected drain-complete case
		}
	}
}

func (t *usbTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.f.Close()
}

func (t *usbTransport) Description() string {
	return "usb:" + t.desc
}
