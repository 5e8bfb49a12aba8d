package coap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldmesh/coapd/pkg/coap"
)

func TestPDU_MarshalUnmarshal_RoundTrip(t *testing.T) {
	t.Parallel()

	pdu := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, 0x1234)
	pdu.Options = append(pdu.Options,
		coap.Option{Number: coap.OptionToken, Value: []byte{0xab, 0xcd}},
		coap.Option{Number: coap.OptionURIPath, Value: []byte("time")},
	)
	pdu.Payload = []byte("hello")

	buf := make([]byte, coap.MaxPDUSize)
	n, err := pdu.Marshal(buf)
	require.NoError(t, err)

	got, err := coap.Unmarshal(buf[:n])
	require.NoError(t, err)

	require.Equal(t, pdu.Version, got.Version)
	require.Equal(t, pdu.Type, got.Type)
	require.Equal(t, pdu.Code, got.Code)
	require.Equal(t, pdu.MID, got.MID)
	require.Equal(t, pdu.Payload, got.Payload)
	require.ElementsMatch(t, pdu.Options, got.Options)
}

func TestPDU_Unmarshal_RejectsShortDatagram(t *testing.T) {
	t.Parallel()

	_, err := coap.Unmarshal([]byte{0x40})
	require.ErrorIs(t, err, coap.ErrShortDatagram)
}

func TestPDU_Unmarshal_RejectsBadVersion(t *testing.T) {
	t.Parallel()

	buf := []byte{0x00, byte(coap.MethodGet), 0x00, 0x01} // version field is 0
	_, err := coap.Unmarshal(buf)
	require.ErrorIs(t, err, coap.ErrBadVersion)
}

func TestPDU_Marshal_RejectsBufferTooSmall(t *testing.T) {
	t.Parallel()

	pdu := coap.NewPDU(coap.TypeNonConfirmable, coap.MethodGet, 1)
	pdu.Payload = make([]byte, 16)

	_, err := pdu.Marshal(make([]byte, 2))
	require.ErrorIs(t, err, coap.ErrBufferTooSmall)
}

func TestPDU_Clone_IsIndependentOfSource(t *testing.T) {
	t.Parallel()

	pdu := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, 7)
	pdu.Options = append(pdu.Options, coap.Option{Number: coap.OptionToken, Value: []byte{1, 2}})
	pdu.Payload = []byte("x")

	clone := pdu.Clone()
	clone.Payload[0] = 'y'
	clone.Options[0].Value[0] = 9

	require.Equal(t, byte('x'), pdu.Payload[0])
	require.Equal(t, byte(1), pdu.Options[0].Value[0])
}

func TestPDU_Token_AbsentReturnsNil(t *testing.T) {
	t.Parallel()

	pdu := coap.NewPDU(coap.TypeNonConfirmable, coap.MethodGet, 1)
	require.Nil(t, pdu.Token())
}
