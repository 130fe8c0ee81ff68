//go:build linux

package bridgerpc

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peerCredentials returns the UID and PID of the process on the other end
// of a unix stream connection, read from the kernel via SO_PEERCRED.
func peerCredentials(conn net.Conn) (uid uint32, pid int32, err error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, 0, fmt.Errorf("connection does not expose a raw socket")
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, 0, fmt.Errorf("get raw connection: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return 0, 0, fmt.Errorf("control raw connection: %w", err)
	}
	if credErr != nil {
		return 0, 0, fmt.Errorf("get peer credentials: %w", credErr)
	}

	return cred.Uid, cred.Pid, nil
}
