package http

import (
	"net"
	"net/http"
	"strings"
)

// Forwarding headers checked in precedence order. Each is consulted only
// when it carries a parseable address.
var forwardingHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Original-Forwarded-For",
}

// ExtractClientIP resolves the originating client address of a request.
//
// Resolution order:
// 1. X-Forwarded-For (first hop of the comma-separated chain)
// 2. X-Real-IP
// 3. X-Original-Forwarded-For
// 4. The socket peer address
// 5. The literal "unknown" when nothing parses
func ExtractClientIP(r *http.Request) string {
	for _, header := range forwardingHeaders {
		if ip := firstValidIP(r.Header.Get(header)); ip != "" {
			return ip
		}
	}
	return getRemoteAddr(r)
}

// firstValidIP takes the first parseable address from a possibly
// comma-separated header value.
func firstValidIP(value string) string {
	if value == "" {
		return ""
	}
	for _, part := range strings.Split(value, ",") {
		ip := strings.TrimSpace(part)
		if isValidIP(ip) {
			return ip
		}
	}
	return ""
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	if isValidIP(r.RemoteAddr) {
		return r.RemoteAddr
	}
	return "unknown"
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
