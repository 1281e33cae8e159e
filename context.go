package authcore

import "context"

type contextKey int

const clientIPKey contextKey = iota

// WithClientIP attaches the caller's remote address to the context; audit
// events emitted during the request carry it as detail.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
