package register

import (
	"net"
	"strings"
)

// ResolveTenant derives the register name from a request host: the first
// DNS label, truncated at its first '-', lower-cased. A port is ignored.
//
//	country.openregister.org      -> country
//	country-discovery.example.com -> country
//	Territory:8080                -> territory
func ResolveTenant(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	label, _, _ := strings.Cut(host, ".")
	label, _, _ = strings.Cut(label, "-")
	return strings.ToLower(label)
}

// normalize is applied to every register name crossing the package boundary.
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
