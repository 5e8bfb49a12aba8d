//go:build unix

package endpoint

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenConfig returns a net.ListenConfig that sets SO_REUSEADDR on the
// listening socket before bind, matching coap_new_context's setsockopt
// call (spec.md §4.C step 4).
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			err := c.Control(func(fd uintptr) {
				setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return setErr
		},
	}
}

func listenUDP(ctx context.Context, addr string) (*net.UDPConn, error) {
	lc := listenConfig()
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}
