package router

import (
	"net"
	"net/http"
	"strings"
)

var realIPHeaders = []string{"True-Client-IP", "X-Real-IP", "X-Forwarded-For"}

func middlewareIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rip := realIP(r); rip != "" {
			r.RemoteAddr = rip
		}
		next.ServeHTTP(w, r)
	})
}

// realIP returns the first valid address found in the proxy headers, falling
// back to the host part of RemoteAddr.
func realIP(r *http.Request) string {
	for _, header := range realIPHeaders {
		ip, _, _ := strings.Cut(r.Header.Get(header), ",")
		if ip = strings.TrimSpace(ip); net.ParseIP(ip) != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return ""
}
