package detour

import "go.uber.org/zap"

type options struct {
	logger *zap.Logger
}

// Option configures a DtNavMesh, DtNavMeshQuery or one of the query drivers.
type Option func(*options)

// WithLogger routes diagnostics to l. The default logger discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
