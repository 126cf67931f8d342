package daemonconfig

import "errors"

// Configuration validation errors.
var (
	ErrNoPatternFiles    = errors.New("at least one pattern file is required (-c/--config)")
	ErrInvalidLogLevel   = errors.New("invalid log level")
	ErrInvalidRepeatRate = errors.New("repeat rate must be positive")
)
