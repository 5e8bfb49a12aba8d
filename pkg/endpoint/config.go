package endpoint

import (
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fieldmesh/coapd/pkg/coap"
)

// ResponseTimeout and MaxRetransmit are the RFC 7252 §4.8 defaults
// (spec.md §6): base retransmission timeout and the retry ceiling after
// which a CON is given up on silently.
const (
	ResponseTimeout = 2 * time.Second
	MaxRetransmit   = 4
)

// ResponseHandler is invoked from Dispatch for every matched or unmatched
// response (spec.md §6's user-facing callback). sent is nil when no
// matching outstanding request was found.
type ResponseHandler func(remote coap.Address, sent, rcvd *coap.PDU, tid coap.TID)

// LocalityPredicate decides whether a received message should be handled by
// this endpoint at all (spec.md §4.H's handle_locally hook, reserved for a
// future gateway/proxy role). The default always returns true.
type LocalityPredicate func(remote coap.Address, pdu *coap.PDU) bool

// Config configures a new Endpoint. Callers typically set Logger,
// ListenAddr (or Conn) and Registry; everything else defaults.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Rand   *rand.Rand

	// ListenAddr is resolved and bound if Conn is nil.
	ListenAddr string
	// Conn, if set, is used as-is (already bound); the caller keeps
	// ownership and Close does not close it.
	Conn *net.UDPConn

	Registry     *coap.Registry
	KnownOptions *coap.OptionFilter

	ResponseHandler ResponseHandler
	HandleLocally   LocalityPredicate
	Metrics         *Metrics
	Name            string
}

// Validate fills defaults and rejects configurations that cannot produce a
// usable Endpoint, following the Config.Validate() convention in
// telemetry/flow-ingest/internal/server/config.go.
func (c *Config) Validate() error {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Conn == nil && c.ListenAddr == "" {
		return errors.New("endpoint: either Conn or ListenAddr is required")
	}
	if c.Registry == nil {
		c.Registry = coap.NewRegistry()
	}
	if c.KnownOptions == nil {
		c.KnownOptions = coap.DefaultKnownOptions()
	}
	if c.HandleLocally == nil {
		c.HandleLocally = func(coap.Address, *coap.PDU) bool { return true }
	}
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Rand == nil {
		seed := c.Clock.Now().UnixNano() ^ int64(len(c.ListenAddr))
		c.Rand = rand.New(rand.NewSource(seed))
	}
	return nil
}
