// Package queue implements the time-ordered send/receive queues that back
// the retransmission timer wheel and the dedup/transaction bookkeeping
// described in spec.md §4.B. It has no knowledge of sockets or dispatch.
package queue

import (
	"time"

	"github.com/fieldmesh/coapd/pkg/coap"
)

// Node owns one PDU while it transits a queue. The queue is the sole owner
// of any node not currently in transit to a handler (spec.md §3); handlers
// receive a borrowed *coap.PDU and must Clone it to retain one.
type Node struct {
	PDU             *coap.PDU
	T               time.Time     // scheduled time: arrival time (receive queue) or next retransmission deadline (send queue)
	Timeout         time.Duration // base retransmission timeout (zero for receive-queue nodes)
	RetransmitCount int
	Remote          coap.Address
	ID              coap.TID

	next *Node
}

// Next returns the following node, or nil at the tail. Exposed read-only so
// callers can walk a queue from PeekNext without mutating it.
func (n *Node) Next() *Node {
	if n == nil {
		return nil
	}
	return n.next
}
