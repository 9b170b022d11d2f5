package media

import (
	"errors"
	"fmt"
)

// Error kinds shared by all layers. Exhaustion of a stream is signalled with
// io.EOF and is not an error.
var (
	// ErrResource reports that a file could not be opened, created or written.
	ErrResource = errors.New("resource error")
	// ErrFormat reports a missing stream index or an unsupported container.
	ErrFormat = errors.New("format error")
	// ErrCodec reports a codec that is unavailable or failed to initialise.
	ErrCodec = errors.New("codec error")
	// ErrConfiguration reports a profile or option that cannot be applied.
	ErrConfiguration = errors.New("configuration error")
	// ErrInactiveStream is returned when reading a stream that was not activated.
	ErrInactiveStream = errors.New("stream is not activated")
	// ErrOptionDeferred is returned by SetOption when the underlying
	// resource does not exist yet; the caller retries once it does.
	ErrOptionDeferred = errors.New("option cannot be applied yet")
)

// OptionError records which option failed to apply.
type OptionError struct {
	Option string
	Value  string
	Err    error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %s=%q: %v", e.Option, e.Value, e.Err)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}
