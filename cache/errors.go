package cache

import "fmt"

// CorruptError reports a persisted store that could not be read. Open treats
// it as a cold start; it is surfaced only through logs.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache store %s is unreadable: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}
