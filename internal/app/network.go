package app

import "net"

// networkInterface is the part of net.Interface used to pick an address
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags           { return r.iface.Flags }
func (r realInterface) Addrs() ([]net.Addr, error) { return r.iface.Addrs() }

// networkProvider lists interfaces; tests substitute a fake
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the IPv4 address voters on the LAN can reach,
// preferring RFC 1918 ranges and falling back to "localhost"
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var fallback net.IP
	for _, iface := range ifaces {
		if flags := iface.Flags(); flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip := addrIP(addr)
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip.IsPrivate() {
				return ip.String()
			}
			if fallback == nil {
				fallback = ip
			}
		}
	}

	if fallback != nil {
		return fallback.String()
	}
	return "localhost"
}

// addrIP extracts an IPv4 address, nil for anything else
func addrIP(addr net.Addr) net.IP {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	return ip.To4()
}
