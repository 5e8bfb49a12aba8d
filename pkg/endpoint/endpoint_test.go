package endpoint_test

import (
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/endpoint"
)

func newTestEndpoint(t *testing.T, cfg endpoint.Config) *endpoint.Endpoint {
	t.Helper()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewFakeClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	ep, err := endpoint.New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })
	return ep
}

func TestEndpoint_SendConfirmed_EnqueuesWithRandomizedTimeout(t *testing.T) {
	t.Parallel()

	peer := newTestEndpoint(t, endpoint.Config{})
	ep := newTestEndpoint(t, endpoint.Config{})

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, 1)
	dst := coap.NewAddress(peer.LocalAddr().(*net.UDPAddr))

	tid := ep.SendConfirmed(dst, req)
	require.NotEqual(t, coap.InvalidTID, tid)

	node := ep.PeekNext()
	require.NotNil(t, node)
	require.Equal(t, tid, node.ID)
	require.Equal(t, 0, node.RetransmitCount)
	require.GreaterOrEqual(t, node.Timeout, endpoint.ResponseTimeout)
	require.Less(t, node.Timeout, endpoint.ResponseTimeout*3/2)
}

func TestEndpoint_Retransmit_DoublesBackoffUntilExhausted(t *testing.T) {
	t.Parallel()

	peer := newTestEndpoint(t, endpoint.Config{})
	ep := newTestEndpoint(t, endpoint.Config{})
	dst := coap.NewAddress(peer.LocalAddr().(*net.UDPAddr))

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, 1)
	tid := ep.SendConfirmed(dst, req)
	node := ep.PopNext()
	require.Equal(t, tid, node.ID)

	for i := 1; i <= endpoint.MaxRetransmit; i++ {
		prevT := node.T
		got := ep.Retransmit(node)
		require.Equal(t, tid, got, "attempt %d should still retransmit", i)
		require.Equal(t, i, node.RetransmitCount)
		require.Equal(t, prevT.Add(node.Timeout<<uint(i)), node.T)
		node = ep.PopNext()
		require.NotNil(t, node)
	}

	// One more attempt beyond MaxRetransmit is dropped silently.
	got := ep.Retransmit(node)
	require.Equal(t, coap.InvalidTID, got)
	require.True(t, ep.CanExit())
}

func TestEndpoint_RequestResponse_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	registry := coap.NewRegistry()
	res := &coap.Resource{Path: "time", ContentFormat: coap.MediaTypeTextPlain}
	res.Handle(coap.MethodGet, func(ctx any, r *coap.Resource, remote coap.Address, req *coap.PDU, tid coap.TID) {
		e := ctx.(*endpoint.Endpoint)
		resp := coap.NewPDU(coap.TypeAcknowledgement, coap.Content, req.MID)
		if tok := req.Token(); tok != nil {
			resp.Options = append(resp.Options, coap.Option{Number: coap.OptionToken, Value: tok})
		}
		resp.Payload = []byte("now")
		e.Send(remote, resp)
	})
	registry.Register(res)

	server := newTestEndpoint(t, endpoint.Config{Registry: registry})

	var gotResp *coap.PDU
	respCh := make(chan struct{}, 1)
	client := newTestEndpoint(t, endpoint.Config{
		ResponseHandler: func(remote coap.Address, sent, rcvd *coap.PDU, tid coap.TID) {
			gotResp = rcvd
			respCh <- struct{}{}
		},
	})

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, 7)
	req.Options = append(req.Options, coap.Option{Number: coap.OptionURIPath, Value: []byte("time")})
	req.Options = append(req.Options, coap.Option{Number: coap.OptionToken, Value: []byte{0x42}})

	dst := coap.NewAddress(server.LocalAddr().(*net.UDPAddr))
	client.SendConfirmed(dst, req)

	require.NoError(t, server.Read())
	server.Dispatch()

	require.NoError(t, client.Read())
	client.Dispatch()

	select {
	case <-respCh:
	case <-time.After(time.Second):
		t.Fatal("response handler was never invoked")
	}

	require.Equal(t, coap.Content, gotResp.Code)
	require.Equal(t, []byte("now"), gotResp.Payload)
	require.True(t, client.CanExit())
}

func TestEndpoint_CanExit_TrueWhenBothQueuesEmpty(t *testing.T) {
	t.Parallel()

	ep := newTestEndpoint(t, endpoint.Config{})
	require.True(t, ep.CanExit())
}
