package relay

import (
	"net/netip"
	"testing"

	E "github.com/sagernet/sing-nc/common/exceptions"
	M "github.com/sagernet/sing-nc/common/metadata"

	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	t.Parallel()
	destination, err := ParseAddress("127.0.0.1:9000")
	require.NoError(t, err)
	require.Equal(t, M.Socksaddr{Addr: netip.MustParseAddr("127.0.0.1"), Port: 9000}, destination)

	destination, err = ParseAddress("localhost:80")
	require.NoError(t, err)
	require.True(t, destination.IsFqdn())
	require.Equal(t, "localhost:80", destination.String())

	destination, err = ParseAddress("[::1]:22")
	require.NoError(t, err)
	require.True(t, destination.Addr.Is6())
}

func TestParseAddressInvalid(t *testing.T) {
	t.Parallel()
	for _, address := range []string{
		"",
		"127.0.0.1",
		":9000",
		"127.0.0.1:",
		"127.0.0.1:http",
		"127.0.0.1:0",
		"127.0.0.1:65536",
		"::1:22",
	} {
		_, err := ParseAddress(address)
		addressErr, isAddressErr := E.Cast[*AddressError](err)
		require.True(t, isAddressErr, address)
		require.Equal(t, address, addressErr.Address)
	}
}

func TestConnectionTimeoutError(t *testing.T) {
	t.Parallel()
	require.True(t, E.IsTimeout(ErrConnectionTimeout))
	require.True(t, E.IsTimeout(E.Cause(ErrConnectionTimeout, "connect 10.0.0.1:9")))
	require.EqualError(t, ErrConnectionTimeout, "connection timeout")
}
