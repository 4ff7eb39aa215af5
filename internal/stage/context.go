package stage

import "context"

type contextKey int

const (
	workDirKey contextKey = iota
	requestIDKey
)

// WithWorkDir attaches the worker's private scratch directory to the
// context. Stage handlers write intermediates there.
func WithWorkDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workDirKey, dir)
}

// WorkDir returns the scratch directory attached to the context, if any.
func WorkDir(ctx context.Context) string {
	dir, _ := ctx.Value(workDirKey).(string)
	return dir
}

// WithRequestID attaches a per-stage correlation id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation id attached to the context, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
