package middleware

import "context"

type contextKey string

const deviceContextKey contextKey = "device_context"

// DeviceContext holds the authenticated device's identity.
type DeviceContext struct {
	DeviceID string
	Platform string
	TokenID  string // jti
}

// GetDeviceContext retrieves the DeviceContext from the context.
func GetDeviceContext(ctx context.Context) (*DeviceContext, bool) {
	val, ok := ctx.Value(deviceContextKey).(*DeviceContext)
	return val, ok
}

// WithDeviceContext attaches the DeviceContext to the context.
func WithDeviceContext(ctx context.Context, dc *DeviceContext) context.Context {
	return context.WithValue(ctx, deviceContextKey, dc)
}
