// Package clientip derives the client identifier used to key rate limits.
//
// The value comes from the first X-Forwarded-For entry and can be spoofed by
// any client that reaches the service directly. Treat it as a throttling key,
// never as an authentication signal.
package clientip

import (
	"net/http"
	"strings"
)

const (
	HeaderForwardedFor = "X-Forwarded-For"
	Loopback           = "127.0.0.1"
)

func FromRequest(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get(HeaderForwardedFor), ",")

	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}

	return Loopback
}
