//go:build (linux && 386) || (linux && arm) || (linux && mips) || (linux && mipsle) || (linux && ppc)

package canbus

import "golang.org/x/sys/unix"

// mmsghdr mirrors the C struct mmsghdr, which golang.org/x/sys/unix does
// not expose: Hdr is 28 bytes, Len is 4 bytes, no padding needed for
// 32-byte alignment.
type mmsghdr struct {
	Hdr unix.Msghdr
	Len uint32
}
