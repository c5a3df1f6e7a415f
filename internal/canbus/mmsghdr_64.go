//go:build (linux && amd64) || (linux && arm64) || (linux && mips64) || (linux && mips64le) || (linux && ppc64) || (linux && ppc64le) || (linux && riscv64) || (linux && s390x)

package canbus

import "golang.org/x/sys/unix"

// mmsghdr mirrors the C struct mmsghdr, which golang.org/x/sys/unix does
// not expose: Hdr is 56 bytes, Len is 4 bytes, padded to 64-byte alignment.
type mmsghdr struct {
	Hdr unix.Msghdr
	Len uint32
	pad [4]byte
}
