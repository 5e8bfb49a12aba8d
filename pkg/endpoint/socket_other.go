//go:build !unix

package endpoint

import (
	"context"
	"net"
)

// listenUDP falls back to a plain ListenPacket on platforms where
// SO_REUSEADDR tuning via syscall.RawConn isn't wired (spec.md §5: this
// changes allocation/reuse semantics, not protocol semantics).
func listenUDP(ctx context.Context, addr string) (*net.UDPConn, error) {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}
