// Package endpoint implements the CoAP message-processing engine: the
// context/lifecycle, the reader, the retransmission-aware sender, and the
// dispatcher, which applies pkg/coap's option-criticality screener
// (spec.md §4). It can be driven by an external reactor through Read,
// Dispatch, PeekNext/PopNext and Retransmit, or by its own Run loop. Run
// starts one goroutine that closes the endpoint when its context is
// cancelled; no other call spawns goroutines, and none blocks beyond the
// single recvfrom inside Read.
package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/queue"
)

// Endpoint is the process- or endpoint-scoped state described in
// spec.md §3 as "Context": the bound socket, the two ordered queues, the
// resource registry, the known-option filter, and the user response
// callback. Endpoint is single-owner and not safe for concurrent use from
// more than the reactor goroutine that drives it, matching spec.md §5.
type Endpoint struct {
	log   *slog.Logger
	clock clockwork.Clock
	rand  *rand.Rand

	conn     *net.UDPConn
	ownsConn bool

	sendQueue *queue.Queue
	recvQueue *queue.Queue

	registry     *coap.Registry
	knownOptions *coap.OptionFilter

	responseHandler ResponseHandler
	handleLocally   LocalityPredicate

	metrics *Metrics
	name    string

	closeOnce sync.Once
}

// New creates an endpoint bound to cfg.ListenAddr (or reusing cfg.Conn),
// registers the default known critical options, and seeds the retry jitter
// source. On any failure the partially-constructed endpoint is torn down
// and an error is returned (spec.md §4.C).
func New(ctx context.Context, cfg Config) (*Endpoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn := cfg.Conn
	owns := false
	if conn == nil {
		var err error
		conn, err = listenUDP(ctx, cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("endpoint: bind %s: %w", cfg.ListenAddr, err)
		}
		owns = true
	}

	e := &Endpoint{
		log:             cfg.Logger,
		clock:           cfg.Clock,
		rand:            cfg.Rand,
		conn:            conn,
		ownsConn:        owns,
		sendQueue:       queue.New(queue.TimeOrder),
		recvQueue:       queue.New(queue.TimeOrder),
		registry:        cfg.Registry,
		knownOptions:    cfg.KnownOptions,
		responseHandler: cfg.ResponseHandler,
		handleLocally:   cfg.HandleLocally,
		metrics:         cfg.Metrics,
		name:            cfg.Name,
	}
	return e, nil
}

// Close drains both queues and closes the socket if this endpoint opened
// it. Idempotent: safe to call more than once.
func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.sendQueue.DeleteAll()
		e.recvQueue.DeleteAll()
		if e.ownsConn {
			err = e.conn.Close()
		}
	})
	return err
}

// LocalAddr returns the address the endpoint is bound to.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Registry returns the endpoint's resource registry, for callers that want
// to register resources after construction.
func (e *Endpoint) Registry() *coap.Registry { return e.registry }

// PeekNext returns the send queue's head node without removing it, for an
// external reactor arming a retransmission timer against its deadline
// (spec.md §4.I). Returns nil if the send queue is empty.
func (e *Endpoint) PeekNext() *queue.Node {
	return e.sendQueue.PeekNext()
}

// PopNext removes and returns the send queue's head node.
func (e *Endpoint) PopNext() *queue.Node {
	return e.sendQueue.PopNext()
}

// CanExit reports whether both queues are empty — the condition an external
// reactor uses to decide the endpoint has no more pending work (spec.md
// §4.I).
func (e *Endpoint) CanExit() bool {
	return e.sendQueue.Empty() && e.recvQueue.Empty()
}

func (e *Endpoint) reportQueueDepths() {
	e.metrics.setQueueDepths(e.name, e.sendQueue.Len(), e.recvQueue.Len())
}
