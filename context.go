package fleetAuth

import "context"

type flowIDContextKey struct{}

// WithFlowID attaches a correlation id to ctx. Intents generate one when ctx
// has none; audit events carry it as metadata.
func WithFlowID(ctx context.Context, flowID string) context.Context {
	return context.WithValue(ctx, flowIDContextKey{}, flowID)
}

// FlowIDFromContext returns the correlation id attached by WithFlowID.
func FlowIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(flowIDContextKey{}).(string)
	return id
}
