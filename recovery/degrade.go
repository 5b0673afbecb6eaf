package recovery

import "context"

// WithGracefulDegradation runs primary and, if it fails, falls back. Both
// failures are reported; a successful fallback marks the source resolved so
// operators can see the system is limping rather than down. The primary's
// error is only surfaced when the fallback also fails, and then the
// fallback's error wins.
func WithGracefulDegradation[T any](
	ctx context.Context,
	reporter Reporter,
	source string,
	primary func(context.Context) (T, error),
	fallback func(context.Context) (T, error),
) (T, error) {
	value, err := primary(ctx)
	if err == nil {
		return value, nil
	}
	reporter.ReportError(source, err)

	value, fbErr := fallback(ctx)
	if fbErr != nil {
		reporter.ReportError(source+"-fallback", fbErr)
		var zero T
		return zero, fbErr
	}

	reporter.MarkResolved(source)
	return value, nil
}
