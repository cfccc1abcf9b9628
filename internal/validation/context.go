package validation

import "context"

type contextKey string

const valuesKey contextKey = "validatedValues"

// WithValues stores the validated payload in ctx for the downstream handler.
func WithValues(ctx context.Context, v Values) context.Context {
	return context.WithValue(ctx, valuesKey, v)
}

// FromContext returns the payload stored by WithValues. The boolean is false
// when the request never went through validation.
func FromContext(ctx context.Context) (Values, bool) {
	v, ok := ctx.Value(valuesKey).(Values)
	return v, ok
}
