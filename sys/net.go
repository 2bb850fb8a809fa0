package sys

import (
	"net"
	neturl "net/url"
	"strings"
)

// IsLocalhost returns true if the input points to localhost/loopback or an unspecified address.
// It accepts a full URL or a bare host[:port].
func IsLocalhost(url string) bool {
	host := url
	if u, err := neturl.Parse(url); err == nil && u.Host != "" {
		host = u.Hostname()
	} else if h, _, err := net.SplitHostPort(url); err == nil {
		host = h
	} else {
		host = strings.Trim(host, "[]")
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}
