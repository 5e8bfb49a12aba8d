package coap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldmesh/coapd/pkg/coap"
)

func TestRegistry_LookupMissReturnsFalse(t *testing.T) {
	t.Parallel()

	r := coap.NewRegistry()
	_, ok := r.Lookup(coap.ResourceKey(1234))
	require.False(t, ok)
}

func TestRegistry_RegisterThenLookup(t *testing.T) {
	t.Parallel()

	r := coap.NewRegistry()
	res := &coap.Resource{Path: "time", ResourceType: "core.time", ContentFormat: coap.MediaTypeTextPlain}
	r.Register(res)

	got, ok := r.Lookup(coap.HashPath("time"))
	require.True(t, ok)
	require.Same(t, res, got)
}

func TestRegistry_PrintWellKnown_SkipsDiscoveryResourceItself(t *testing.T) {
	t.Parallel()

	r := coap.NewRegistry()
	r.Register(&coap.Resource{Path: coap.WellKnownPath})
	r.Register(&coap.Resource{Path: "time", ResourceType: "core.time", ContentFormat: coap.MediaTypeTextPlain})

	body, err := r.PrintWellKnown()
	require.NoError(t, err)
	require.Equal(t, `</time>;rt="core.time"`, body)
}

func TestResource_HandleAndHandlerFor(t *testing.T) {
	t.Parallel()

	res := &coap.Resource{Path: "time"}
	called := false
	res.Handle(coap.MethodGet, func(any, *coap.Resource, coap.Address, *coap.PDU, coap.TID) {
		called = true
	})

	h, ok := res.HandlerFor(coap.MethodGet)
	require.True(t, ok)
	h(nil, res, coap.Address{}, nil, 0)
	require.True(t, called)

	_, ok = res.HandlerFor(coap.MethodPost)
	require.False(t, ok)
}
