package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fieldmesh/coapd/pkg/coap"
)

// defaultReactorTick bounds how long Run blocks in a single read when the
// send queue is empty, so it still wakes up often enough to notice context
// cancellation and freshly-registered resources.
const defaultReactorTick = time.Second

// Run drives the endpoint until ctx is cancelled: it arms a read deadline
// against either defaultReactorTick or the send queue's next retransmission
// deadline (whichever is sooner), reads at most one datagram, services any
// retransmissions that have come due, and dispatches everything the receive
// queue collected — the external reactor spec.md §4.I describes, folded
// into the package's own single-threaded event loop the way
// tools/twamp/pkg/light.Reflector.Run drives its own socket with
// SetReadDeadline plus a timeout-tolerant read.
//
// Run is not safe to call from more than one goroutine at a time, and no
// other Endpoint method should be called concurrently with it.
func (e *Endpoint) Run(ctx context.Context) error {
	e.log.Info("endpoint: starting", "name", e.name, "local", e.LocalAddr())

	go func() {
		<-ctx.Done()
		_ = e.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		deadline := e.clock.Now().Add(defaultReactorTick)
		if node := e.PeekNext(); node != nil && node.T.Before(deadline) {
			deadline = node.T
		}

		if err := e.conn.SetReadDeadline(deadline); err != nil {
			if isClosedErr(err) {
				return nil
			}
			return fmt.Errorf("endpoint: set read deadline: %w", err)
		}

		if err := e.Read(); err != nil {
			if errors.Is(err, coap.ErrClosed) {
				return nil
			}
			var ne net.Error
			if !(errors.As(err, &ne) && ne.Timeout()) {
				e.log.Debug("endpoint: read error, continuing", "error", err)
			}
		}

		e.serviceRetransmissions()
		e.Dispatch()
	}
}

// serviceRetransmissions pops and retransmits every send-queue entry whose
// deadline has passed, in deadline order.
func (e *Endpoint) serviceRetransmissions() {
	now := e.clock.Now()
	for {
		node := e.PeekNext()
		if node == nil || node.T.After(now) {
			return
		}
		e.PopNext()
		e.Retransmit(node)
	}
}
