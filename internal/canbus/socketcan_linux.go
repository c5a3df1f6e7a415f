//go:build linux

// Package canbus is a minimal CAN-FD-aware raw SocketCAN link: enough to
// drive pkg/isotp's classical and FD engines over a real or virtual
// (vcan) interface. It is not a transport for
// the host protocol client — the adapter-facing wire protocol talks over
// pkg/transport instead.
package canbus

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	canMTU    = 16 // classical struct can_frame
	canFDMTU  = 72 // struct canfd_frame
	canEFFFlag = 0x80000000

	// CAN_RAW_FD_FRAMES is not exposed by golang.org/x/sys/unix; the value
	// is stable ABI from linux/can/raw.h.
	canRawFDFrames = 5

	msgBatchSize = 64
)

// Frame is one CAN or CAN-FD frame.
type Frame struct {
	ID       uint32
	Extended bool
	FD       bool
	Data     []byte // len 0..8 classical, 0..64 FD
}

type classicalWireFrame struct {
	id   uint32
	len  uint8
	pad  uint8
	res0 uint8
	res1 uint8
	data [8]uint8
}

type fdWireFrame struct {
	id    uint32
	len   uint8
	flags uint8
	res0  uint8
	res1  uint8
	data  [64]uint8
}

// Link is a bound, unconnected AF_CAN/SOCK_RAW socket on one interface.
type Link struct {
	fd     int
	fdMode bool
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open binds a raw CAN socket to channel (e.g. "vcan0" or "can0"). When fd
// is true, CAN-FD frame reception is enabled on the socket.
func Open(channel string, fd bool, logger *slog.Logger) (*Link, error) {
	if logger == nil {
		logger = slog.Default()
	}
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, fmt.Errorf("canbus: %w", err)
	}

	sock, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: open socket: %w", err)
	}
	if fd {
		if err := unix.SetsockoptInt(sock, unix.SOL_CAN_RAW, canRawFDFrames, 1); err != nil {
			unix.Close(sock)
			return nil, fmt.Errorf("canbus: enable CAN-FD frames: %w", err)
		}
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(sock, addr); err != nil {
		unix.Close(sock)
		return nil, fmt.Errorf("canbus: bind: %w", err)
	}

	return &Link{fd: sock, fdMode: fd, logger: logger.With("service", "canbus", "channel", channel)}, nil
}

// Close releases the underlying socket, stopping any active Listen loop.
func (l *Link) Close() error {
	if l.cancel != nil {
		l.cancel()
		l.wg.Wait()
	}
	return unix.Close(l.fd)
}

// Send writes one frame to the bus.
func (l *Link) Send(f Frame) error {
	id := f.ID
	if f.Extended {
		id |= canEFFFlag
	}
	if f.FD {
		wire := fdWireFrame{id: id, len: uint8(len(f.Data))}
		copy(wire.data[:], f.Data)
		raw := (*(*[canFDMTU]byte)(unsafe.Pointer(&wire)))[:]
		n, err := unix.Write(l.fd, raw)
		if err != nil {
			return fmt.Errorf("canbus: write: %w", err)
		}
		if n != canFDMTU {
			return fmt.Errorf("canbus: short write (%d of %d)", n, canFDMTU)
		}
		return nil
	}
	wire := classicalWireFrame{id: id, len: uint8(len(f.Data))}
	copy(wire.data[:], f.Data)
	raw := (*(*[canMTU]byte)(unsafe.Pointer(&wire)))[:]
	n, err := unix.Write(l.fd, raw)
	if err != nil {
		return fmt.Errorf("canbus: write: %w", err)
	}
	if n != canMTU {
		return fmt.Errorf("canbus: short write (%d of %d)", n, canMTU)
	}
	return nil
}

// Receive blocks for at most deadline's remaining duration for one frame.
func (l *Link) Receive(deadline time.Time) (Frame, error) {
	timeout := time.Until(deadline)
	if timeout < 0 {
		timeout = 0
	}
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(l.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return Frame{}, fmt.Errorf("canbus: set read timeout: %w", err)
	}

	buf := make([]byte, canFDMTU)
	n, err := unix.Read(l.fd, buf)
	if err != nil {
		return Frame{}, fmt.Errorf("canbus: read: %w", err)
	}
	return decodeWireFrame(buf[:n])
}

func decodeWireFrame(buf []byte) (Frame, error) {
	switch len(buf) {
	case canMTU:
		var wire classicalWireFrame
		copy((*(*[canMTU]byte)(unsafe.Pointer(&wire)))[:], buf)
		return wireToFrame(wire.id, wire.len, wire.data[:], false), nil
	case canFDMTU:
		var wire fdWireFrame
		copy((*(*[canFDMTU]byte)(unsafe.Pointer(&wire)))[:], buf)
		return wireToFrame(wire.id, wire.len, wire.data[:], true), nil
	default:
		return Frame{}, fmt.Errorf("canbus: unexpected frame size %d", len(buf))
	}
}

func wireToFrame(id uint32, length uint8, data []byte, fd bool) Frame {
	f := Frame{ID: id &^ canEFFFlag, Extended: id&canEFFFlag != 0, FD: fd}
	f.Data = append([]byte(nil), data[:length]...)
	return f
}

// Listen runs a batched receive loop (via recvmmsg) until ctx is
// cancelled, calling handler for each frame as it arrives.
func (l *Link) Listen(ctx context.Context, handler func(Frame)) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runBatchLoop(ctx, handler)
	}()
}

func (l *Link) runBatchLoop(ctx context.Context, handler func(Frame)) {
	frameSize := canMTU
	if l.fdMode {
		frameSize = canFDMTU
	}

	bufs := make([][]byte, msgBatchSize)
	iovecs := make([]unix.Iovec, msgBatchSize)
	mmsgs := make([]mmsghdr, msgBatchSize)
	for i := range bufs {
		bufs[i] = make([]byte, frameSize)
		iovecs[i].Base = &bufs[i][0]
		iovecs[i].SetLen(frameSize)
		mmsgs[i].Hdr.Iov = &iovecs[i]
		mmsgs[i].Hdr.Iovlen = 1
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ts := unix.Timespec{Nsec: 50_000_000} // 50ms
		n, _, errno := unix.Syscall6(
			unix.SYS_RECVMMSG,
			uintptr(l.fd),
			uintptr(unsafe.Pointer(&mmsgs[0])),
			uintptr(msgBatchSize),
			0,
			uintptr(unsafe.Pointer(&ts)),
			0,
		)
		if errno != 0 {
			if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK || errno == unix.EINTR {
				continue
			}
			l.logger.Error("recvmmsg failed", "err", errno)
			return
		}
		for i := 0; i < int(n); i++ {
			frame, err := decodeWireFrame(bufs[i][:mmsgs[i].Len])
			if err != nil {
				l.logger.Debug("dropping malformed frame", "err", err)
				continue
			}
			handler(frame)
		}
	}
}
