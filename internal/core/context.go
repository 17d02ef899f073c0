package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "requester_ip"
	ctxKeyUserAgent contextKey = "requester_ua"
)

// RequestMetadata identifies who asked for an import.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
}

// ContextWithIPAddress adds the requester's IP address to ctx.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the requester's User-Agent to ctx.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// MetadataFromContext extracts whatever requester details ctx carries.
func MetadataFromContext(ctx context.Context) RequestMetadata {
	var m RequestMetadata
	m.IPAddress, _ = ctx.Value(ctxKeyIPAddress).(string)
	m.UserAgent, _ = ctx.Value(ctxKeyUserAgent).(string)
	return m
}
