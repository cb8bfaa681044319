package frame

import "fmt"

// ConfigError reports an invalid configuration value, such as non-positive
// frame geometry or a zero block size.
// Use errors.Is(err, &ConfigError{}) to check for this kind.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Field + " " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// SourceError reports a failure of the underlying byte source. Ordinary end
// of stream is normal termination and is never wrapped in a SourceError.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("byte source failed: %v", e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool {
	_, ok := target.(*SourceError)
	return ok
}
