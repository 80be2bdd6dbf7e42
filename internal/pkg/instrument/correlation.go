package instrument

import "context"

type correlationKey struct{}

// SetCorrelationID tags ctx with the id that ties log lines of one request
// or message together.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GetCorrelationID returns the id set by SetCorrelationID, or "".
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)

	return id
}
