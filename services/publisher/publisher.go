package publisher

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to a stream under the given field
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// Nop discards every message. It stands in when no broker is configured.
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(key string, message []byte) error { return nil }

// TrimStreams implements Publisher
func (Nop) TrimStreams() error { return nil }

// Close implements Publisher
func (Nop) Close() error { return nil }
