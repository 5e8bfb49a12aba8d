package endpoint_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/endpoint"
)

func doRequestResponse(t *testing.T, registry *coap.Registry, req *coap.PDU) *coap.PDU {
	t.Helper()

	server := newTestEndpoint(t, endpoint.Config{Registry: registry})
	var got *coap.PDU
	done := make(chan struct{}, 1)
	client := newTestEndpoint(t, endpoint.Config{
		ResponseHandler: func(remote coap.Address, sent, rcvd *coap.PDU, tid coap.TID) {
			got = rcvd
			done <- struct{}{}
		},
	})

	dst := coap.NewAddress(server.LocalAddr().(*net.UDPAddr))
	client.SendConfirmed(dst, req)

	require.NoError(t, server.Read())
	server.Dispatch()
	require.NoError(t, client.Read())
	client.Dispatch()

	<-done
	return got
}

func TestDispatch_UnknownPathGet_NotFound(t *testing.T) {
	t.Parallel()

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, 1)
	req.Options = append(req.Options, coap.Option{Number: coap.OptionURIPath, Value: []byte("nope")})

	resp := doRequestResponse(t, coap.NewRegistry(), req)
	require.Equal(t, coap.NotFound, resp.Code)
}

func TestDispatch_UnknownPathPost_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodPost, 1)
	req.Options = append(req.Options, coap.Option{Number: coap.OptionURIPath, Value: []byte("nope")})

	resp := doRequestResponse(t, coap.NewRegistry(), req)
	require.Equal(t, coap.MethodNotAllowed, resp.Code)
}

func TestDispatch_RegisteredPathWithoutHandlerForMethod_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	registry := coap.NewRegistry()
	registry.Register(&coap.Resource{Path: "time"})

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodPost, 1)
	req.Options = append(req.Options, coap.Option{Number: coap.OptionURIPath, Value: []byte("time")})

	resp := doRequestResponse(t, registry, req)
	require.Equal(t, coap.MethodNotAllowed, resp.Code)
}

func TestDispatch_WellKnownCore_ListsRegisteredResources(t *testing.T) {
	t.Parallel()

	registry := coap.NewRegistry()
	registry.Register(&coap.Resource{Path: "time", ResourceType: "core.time"})

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, 1)
	for _, seg := range []string{".well-known", "core"} {
		req.Options = append(req.Options, coap.Option{Number: coap.OptionURIPath, Value: []byte(seg)})
	}

	resp := doRequestResponse(t, registry, req)
	require.Equal(t, coap.Content, resp.Code)
	require.Contains(t, string(resp.Payload), `</time>;rt="core.time"`)
}

func TestDispatch_ConfirmableWithUnknownCriticalOption_BadOption(t *testing.T) {
	t.Parallel()

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, 1)
	req.Options = append(req.Options, coap.Option{Number: 65, Value: []byte("x")}) // odd, unrecognized

	resp := doRequestResponse(t, coap.NewRegistry(), req)
	require.Equal(t, coap.BadOption, resp.Code)
}
