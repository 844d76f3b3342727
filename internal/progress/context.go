package progress

import "context"

type stackKey struct{}

// WithStack returns a copy of ctx carrying s.
func WithStack(ctx context.Context, s *TaskStack) context.Context {
	return context.WithValue(ctx, stackKey{}, s)
}

// StackFromContext returns the stack carried by ctx, if any.
func StackFromContext(ctx context.Context) (*TaskStack, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(stackKey{}).(*TaskStack)
	return s, ok && s != nil
}

// StackFor returns the stack carried by ctx. A context without one resolves to
// the default reporter's primary stack, so only the coordinating goroutine may
// rely on that fallback.
func StackFor(ctx context.Context) *TaskStack {
	if s, ok := StackFromContext(ctx); ok {
		return s
	}
	return Default().PrimaryStack()
}

// Fork returns a context carrying a new non-primary stack bound to the same
// reporter as ctx's stack. Call it before handing ctx to a new goroutine.
func Fork(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return WithStack(ctx, StackFor(ctx).Reporter().NewStack())
}
