package patternconfig

import "errors"

// Load-time errors. A syntax error on a single line is not one of these:
// the loader logs it, skips the line and keeps loading the rest of the
// file. ErrEmptyPatternFile is returned by Load for an empty path;
// ErrNoDevicesConfigured is returned by instance.New for a pattern file
// that declares no devices.
var (
	ErrNoDevicesConfigured = errors.New("no devices configured")
	ErrEmptyPatternFile    = errors.New("pattern file path is empty")
)
