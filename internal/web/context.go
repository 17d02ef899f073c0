package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/SheetImport/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to ctx for run history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

// clientIP strips the port from RemoteAddr, which TrustedRealIP may already
// have replaced with a bare address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
