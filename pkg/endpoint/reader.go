package endpoint

import (
	"errors"
	"net"
	"strings"

	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/queue"
)

// Read drains one datagram from the socket into a scratch buffer sized
// coap.MaxPDUSize, wraps it in a receive-queue node, and inserts it in
// arrival-time order (spec.md §4.D). It is the only call in this package
// that may perform a blocking syscall, and only if the caller invokes it
// without first gating on socket readiness — a correctly-driven reactor
// calls this after select/poll reports the socket readable.
//
// Read reports an error for a failed receive, a datagram shorter than the
// fixed header, or an unsupported protocol version; all three are silently
// recoverable by the caller (log and continue). Malformed option layouts
// beyond optcnt are not validated here — CheckCritical in the dispatcher
// handles that (spec.md §4.D).
func (e *Endpoint) Read() error {
	buf := make([]byte, coap.MaxPDUSize)
	n, addr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		if isClosedErr(err) {
			return coap.ErrClosed
		}
		e.log.Debug("endpoint: recvfrom failed", "error", err)
		return err
	}

	pdu, err := coap.Unmarshal(buf[:n])
	if err != nil {
		e.log.Debug("endpoint: discarding invalid datagram", "peer", addr, "error", err)
		e.metrics.observeDropped(e.name, "invalid-datagram")
		return err
	}

	remote := coap.NewAddress(addr)
	node := &queue.Node{
		PDU:    pdu,
		T:      e.clock.Now(),
		Remote: remote,
		ID:     coap.TransactionID(remote, pdu),
	}
	e.recvQueue.Insert(node)
	e.reportQueueDepths()
	e.log.Debug("endpoint: received datagram", "peer", addr, "bytes", n, "tid", node.ID, "mid", pdu.MID, "type", pdu.Type)
	return nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection")
}
