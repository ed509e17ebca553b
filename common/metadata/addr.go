package metadata

import (
	"net"
	"net/netip"
	"strconv"
)

type Socksaddr struct {
	Addr netip.Addr
	Fqdn string
	Port uint16
}

func (ap Socksaddr) Network() string {
	return "tcp"
}

func (ap Socksaddr) IsIP() bool {
	return ap.Addr.IsValid()
}

func (ap Socksaddr) IsFqdn() bool {
	return !ap.IsIP()
}

func (ap Socksaddr) IsValid() bool {
	return ap.Addr.IsValid() || ap.Fqdn != ""
}

func (ap Socksaddr) AddrString() string {
	if ap.Addr.IsValid() {
		return ap.Addr.String()
	} else {
		return ap.Fqdn
	}
}

func (ap Socksaddr) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr, ap.Port)
}

func (ap Socksaddr) String() string {
	return net.JoinHostPort(ap.AddrString(), strconv.Itoa(int(ap.Port)))
}

func SocksaddrFromNetIP(ap netip.AddrPort) Socksaddr {
	return Socksaddr{
		Addr: AddrFromIP(ap.Addr().AsSlice()),
		Port: ap.Port(),
	}
}

func AddrFromIP(ip net.IP) netip.Addr {
	addr, _ := netip.AddrFromSlice(ip)
	if addr.Is4In6() {
		addr = netip.AddrFrom4(addr.As4())
	}
	return addr
}

func ParseSocksaddr(address string) Socksaddr {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return Socksaddr{}
	}
	return ParseSocksaddrHostPort(host, port)
}

func ParseSocksaddrHostPort(host string, portStr string) Socksaddr {
	port, _ := strconv.ParseUint(portStr, 10, 16)
	netAddr, err := netip.ParseAddr(host)
	if netAddr.Is4In6() {
		netAddr = netip.AddrFrom4(netAddr.As4())
	}
	if err != nil {
		return Socksaddr{
			Fqdn: host,
			Port: uint16(port),
		}
	} else {
		return Socksaddr{
			Addr: netAddr,
			Port: uint16(port),
		}
	}
}
