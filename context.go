package cosign

import (
	"context"
	"regexp"

	"github.com/tendermint/tendermint/libs/log"
)

var (
	// DefaultLogger is used for all context that have not
	// set anything themselves
	DefaultLogger = log.NewNopLogger()

	// IsValidChainID is the RegExp to ensure valid chain IDs.
	// Cosmos chain ids look like cosmoshub-4 or osmo-test-5.
	IsValidChainID = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{3,50}$`).MatchString
)

type contextKey int // local to the cosign package

const (
	contextKeyLogger contextKey = iota
)

// WithLogger sets the logger for this context. Unlike most context values
// the logger may be overwritten, so that request scoped information can be
// attached further down the stack.
func WithLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, contextKeyLogger, logger)
}

// WithLogInfo extends the context logger with additional key/value pairs.
func WithLogInfo(ctx context.Context, keyvals ...interface{}) context.Context {
	logger := GetLogger(ctx).With(keyvals...)
	return WithLogger(ctx, logger)
}

// GetLogger returns the currently set logger, or
// DefaultLogger if none was set
func GetLogger(ctx context.Context) log.Logger {
	val, ok := ctx.Value(contextKeyLogger).(log.Logger)
	if !ok {
		return DefaultLogger
	}
	return val
}
