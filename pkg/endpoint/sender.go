package endpoint

import (
	"time"

	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/queue"
)

// transmit marshals pdu and writes it to dst, returning the transaction id
// computed from (dst, pdu) regardless of whether the write succeeds — the
// id is always derived at enqueue/send time from the addressing
// information, never from the send outcome (spec.md §9's fix for the
// source's id-on-failure bug: computing the id from the send result left
// node.id == InvalidTID on a failed send even though the node remained
// queued under that key).
func (e *Endpoint) transmit(dst coap.Address, pdu *coap.PDU) (coap.TID, error) {
	id := coap.TransactionID(dst, pdu)

	buf := make([]byte, coap.MaxPDUSize)
	n, err := pdu.Marshal(buf)
	if err != nil {
		e.log.Warn("endpoint: failed to marshal PDU", "peer", dst, "mid", pdu.MID, "error", err)
		return id, err
	}

	if _, err := e.conn.WriteToUDP(buf[:n], dst.UDPAddr()); err != nil {
		e.log.Warn("endpoint: sendto failed", "peer", dst, "mid", pdu.MID, "error", err)
		return id, err
	}
	return id, nil
}

// Send transmits pdu to dst unreliably and returns its transaction id, or
// coap.InvalidTID if the send failed (spec.md §4.E). The PDU is not
// retained by the endpoint either way.
func (e *Endpoint) Send(dst coap.Address, pdu *coap.PDU) coap.TID {
	id, err := e.transmit(dst, pdu)
	if err != nil {
		return coap.InvalidTID
	}
	return id
}

// SendConfirmed transmits pdu as a confirmable message, owns it in the send
// queue until it is ACKed/RST or exhausts its retries, and returns its
// transaction id (spec.md §4.E). The caller must not free/reuse pdu after
// this call — the node now owns it.
//
// Per invariant 2 and the id-at-enqueue fix above, the node is inserted
// into the send queue (and its id fixed) before the first transmission is
// attempted, so a hypothetically-racing ACK is always matchable — spec.md
// §5's "enqueue-then-send" ordering guarantee.
func (e *Endpoint) SendConfirmed(dst coap.Address, pdu *coap.PDU) coap.TID {
	id := coap.TransactionID(dst, pdu)

	r := byte(e.rand.Intn(256))
	timeout := ResponseTimeout + (ResponseTimeout/2)*time.Duration(r)/256

	node := &queue.Node{
		PDU:     pdu,
		T:       e.clock.Now().Add(timeout),
		Timeout: timeout,
		Remote:  dst,
		ID:      id,
	}
	e.sendQueue.Insert(node)
	e.reportQueueDepths()

	// The node is already enqueued under id regardless of whether this
	// first transmit succeeds (transmit logs its own failure); recovery
	// from a failed write is retransmission's job, not this call's. The
	// return value only promises "a node was enqueued under this id", the
	// same contract queue growth is checked against in tests.
	_, _ = e.transmit(dst, pdu)
	return id
}

// Retransmit is called by the external timer driver once the send queue's
// head node's deadline has passed (spec.md §4.E, §4.I). If the node has not
// exceeded MaxRetransmit, its back-off is doubled, it is re-inserted, and
// retransmitted; otherwise it is dropped silently (no timeout callback is
// specified — spec.md §9).
func (e *Endpoint) Retransmit(node *queue.Node) coap.TID {
	if node.RetransmitCount < MaxRetransmit {
		node.RetransmitCount++
		node.T = node.T.Add(node.Timeout << uint(node.RetransmitCount))
		e.sendQueue.Insert(node)
		e.reportQueueDepths()
		e.metrics.observeRetransmit(e.name)

		e.log.Debug("endpoint: retransmitting", "tid", node.ID, "mid", node.PDU.MID, "attempt", node.RetransmitCount, "peer", node.Remote)
		if _, err := e.transmit(node.Remote, node.PDU); err != nil {
			return coap.InvalidTID
		}
		return node.ID
	}

	e.log.Debug("endpoint: retransmission exhausted, dropping", "tid", node.ID, "mid", node.PDU.MID, "peer", node.Remote)
	e.metrics.observeExhausted(e.name)
	return coap.InvalidTID
}

// SendError builds an error response for req via coap.NewErrorResponse and
// sends it unreliably, freeing it if the send fails (spec.md §4.G).
func (e *Endpoint) SendError(req *coap.PDU, dst coap.Address, code coap.Code, opts *coap.OptionFilter) coap.TID {
	resp := coap.NewErrorResponse(req, code, opts)
	return e.Send(dst, resp)
}
