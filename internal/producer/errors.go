package producer

import "errors"

var (
	// ErrMalformedFeed indicates a feed message that could not be parsed.
	ErrMalformedFeed = errors.New("producer: malformed feed message")

	// ErrUnknownSource indicates a source name missing from the
	// configured producer list.
	ErrUnknownSource = errors.New("producer: unknown source")
)
