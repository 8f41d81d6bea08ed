// Package observability builds the process logger.
//
// Production deployments log JSON lines; development uses zap's console
// encoder with colored levels. Every component receives the *zap.Logger
// built here through its constructor.
package observability
