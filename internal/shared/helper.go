package shared

import "net"

func IsInternalIP(ip string) bool {
	netIP := net.ParseIP(ip)
	if netIP == nil {
		return false
	}
	for _, cidr := range InternalCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(netIP) {
			return true
		}
	}
	return false
}

func IsLoopbackIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback()
}

func IsWildcardIP(ip string) bool {
	return ip == "0.0.0.0" || ip == "::" || ip == ""
}

// IsExternalIP reports whether ip is a routable peer worth a reputation check.
func IsExternalIP(ip string) bool {
	if IsWildcardIP(ip) || net.ParseIP(ip) == nil {
		return false
	}
	return !IsLoopbackIP(ip) && !IsInternalIP(ip)
}
