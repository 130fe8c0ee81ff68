//go:build !linux

package bridgerpc

import (
	"fmt"
	"net"
)

// peerCredentials is unavailable off Linux, so every connection is refused.
func peerCredentials(conn net.Conn) (uid uint32, pid int32, err error) {
	return 0, 0, fmt.Errorf("peer credentials not supported on this platform")
}
