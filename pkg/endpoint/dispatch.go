package endpoint

import (
	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/queue"
)

// Dispatch drains the receive queue in arrival order, applying the
// type-specific policy of spec.md §4.H to each entry in turn. After
// Dispatch returns, the receive queue is empty (testable property 9).
// A malformed individual message never unwinds the drain loop (spec.md
// §7): dispatchOne recovers locally and continues.
func (e *Endpoint) Dispatch() {
	for {
		rcvd := e.recvQueue.PopNext()
		if rcvd == nil {
			return
		}
		e.reportQueueDepths()
		e.dispatchOne(rcvd)
	}
}

func (e *Endpoint) dispatchOne(rcvd *queue.Node) {
	if rcvd.PDU.Version != coap.DefaultVersion {
		e.log.Debug("endpoint: dropped packet with unknown version", "version", rcvd.PDU.Version, "mid", rcvd.PDU.MID)
		e.metrics.observeDropped(e.name, "bad-version")
		return
	}

	var sent *queue.Node

	switch rcvd.PDU.Type {
	case coap.TypeAcknowledgement:
		sent = e.sendQueue.RemoveByID(rcvd.ID)
		e.metrics.observeDispatched(e.name, "ack")
		if rcvd.PDU.Code.IsEmpty() {
			// Empty ACK for a separate response: retransmission is
			// cancelled, but there is no response to hand upstream.
			return
		}

	case coap.TypeReset:
		sent = e.sendQueue.RemoveByID(rcvd.ID)
		e.metrics.observeDispatched(e.name, "rst")
		e.log.Warn("endpoint: got RST", "tid", rcvd.ID, "mid", rcvd.PDU.MID, "peer", rcvd.Remote)
		// Subscription teardown on RST is a future hook (spec.md §9); this
		// engine only cancels the matched retransmission above.

	case coap.TypeNonConfirmable:
		e.metrics.observeDispatched(e.name, "non")
		unknown := &coap.OptionFilter{}
		if !coap.CheckCritical(e.knownOptions, rcvd.PDU.Options, unknown) {
			e.log.Debug("endpoint: dropped NON with unknown critical option", "peer", rcvd.Remote, "mid", rcvd.PDU.MID, "error", coap.ErrUnknownCritical)
			e.metrics.observeDropped(e.name, "unknown-critical-option")
			return
		}

	case coap.TypeConfirmable:
		e.metrics.observeDispatched(e.name, "con")
		unknown := &coap.OptionFilter{}
		if !coap.CheckCritical(e.knownOptions, rcvd.PDU.Options, unknown) {
			e.log.Debug("endpoint: CON with unknown critical option, replying 4.02", "peer", rcvd.Remote, "mid", rcvd.PDU.MID, "error", coap.ErrUnknownCritical)
			e.metrics.observeDropped(e.name, "unknown-critical-option")
			e.sendErrorChecked(rcvd, coap.BadOption, unknown, coap.ErrUnknownCritical)
			return
		}
	}

	if !e.handleLocally(rcvd.Remote, rcvd.PDU) {
		return
	}

	switch {
	case rcvd.PDU.Code.IsRequest():
		e.handleRequest(rcvd)
	case rcvd.PDU.Code.IsResponse():
		e.handleResponse(sent, rcvd)
	default:
		e.log.Debug("endpoint: dropped message with invalid code", "code", rcvd.PDU.Code, "mid", rcvd.PDU.MID)
		e.metrics.observeDropped(e.name, "invalid-code")
	}
}

// handleRequest looks the request URI up in the resource registry and
// either invokes the registered method handler or synthesizes the
// appropriate default response (spec.md §4.H's handle_request).
func (e *Endpoint) handleRequest(rcvd *queue.Node) {
	key := coap.HashRequestURI(rcvd.PDU)
	tokenOnly := coap.NewOptionFilter(coap.OptionToken)

	res, ok := e.registry.Lookup(key)
	if !ok {
		switch {
		case rcvd.PDU.Code == coap.MethodGet && key == coap.WellKnownKey:
			e.replyWellKnown(rcvd)
		case rcvd.PDU.Code == coap.MethodGet:
			e.sendErrorChecked(rcvd, coap.NotFound, tokenOnly, coap.ErrResourceNotFound)
		default:
			e.sendErrorChecked(rcvd, coap.MethodNotAllowed, tokenOnly, coap.ErrMethodNotAllowed)
		}
		return
	}

	if h, ok := res.HandlerFor(rcvd.PDU.Code); ok {
		h(e, res, rcvd.Remote, rcvd.PDU, rcvd.ID)
		return
	}

	if rcvd.PDU.Code == coap.MethodGet && key == coap.WellKnownKey {
		e.replyWellKnown(rcvd)
		return
	}
	e.sendErrorChecked(rcvd, coap.MethodNotAllowed, tokenOnly, coap.ErrMethodNotAllowed)
}

func (e *Endpoint) replyWellKnown(rcvd *queue.Node) {
	resp := coap.WellKnownResponse(rcvd.PDU, e.registry)
	if resp == nil {
		e.log.Warn("endpoint: print_wellknown failed", "peer", rcvd.Remote, "mid", rcvd.PDU.MID)
		return
	}
	if e.Send(rcvd.Remote, resp) == coap.InvalidTID {
		e.log.Warn("endpoint: cannot send wellknown response", "peer", rcvd.Remote, "mid", rcvd.PDU.MID)
	}
}

// sendErrorChecked builds and sends an error response for rcvd, logging a
// warning on send failure (spec.md §7: "Response-send failure: free the
// unsent response PDU; log warning" applies to every synthesized error
// response, not just the wellknown reply). cause is the taxonomy sentinel
// that explains why this code was chosen (spec.md §7), logged alongside
// the send failure so the two reasons — "why we rejected it" and "why the
// peer never heard about it" — aren't conflated in one line.
func (e *Endpoint) sendErrorChecked(rcvd *queue.Node, code coap.Code, opts *coap.OptionFilter, cause error) {
	if e.SendError(rcvd.PDU, rcvd.Remote, code, opts) == coap.InvalidTID {
		e.log.Warn("endpoint: cannot send error response", "peer", rcvd.Remote, "code", code, "mid", rcvd.PDU.MID, "cause", cause)
	}
}

// handleResponse acknowledges a separate (CON) response and invokes the user
// callback, passing a nil sent PDU when no outstanding request matched the
// id (spec.md §4.H's handle_response).
func (e *Endpoint) handleResponse(sent, rcvd *queue.Node) {
	if rcvd.PDU.Type == coap.TypeConfirmable {
		ack := coap.NewPDU(coap.TypeAcknowledgement, coap.CodeEmpty, rcvd.PDU.MID)
		e.Send(rcvd.Remote, ack)
	}

	if e.responseHandler == nil {
		return
	}
	var sentPDU *coap.PDU
	if sent != nil {
		sentPDU = sent.PDU
	}
	e.responseHandler(rcvd.Remote, sentPDU, rcvd.PDU, rcvd.ID)
}
