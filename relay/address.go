package relay

import (
	"net"
	"strconv"

	M "github.com/sagernet/sing-nc/common/metadata"
)

// ParseAddress parses a HOST:PORT destination. HOST is an IP literal
// (IPv6 in brackets) or a name resolved at connect time.
func ParseAddress(address string) (M.Socksaddr, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		reason := err.Error()
		if addrErr, isAddrErr := err.(*net.AddrError); isAddrErr {
			reason = addrErr.Err
		}
		return M.Socksaddr{}, &AddressError{address, reason}
	}
	if host == "" {
		return M.Socksaddr{}, &AddressError{address, "missing host"}
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return M.Socksaddr{}, &AddressError{address, "invalid port " + strconv.Quote(portStr)}
	}
	return M.ParseSocksaddrHostPort(host, portStr), nil
}
