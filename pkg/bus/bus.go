package bus

// Handler consumes the raw payload of one message on a subscribed topic.
type Handler func(data []byte)

// Bus is the topic pub/sub boundary. The exploration core only depends on
// this interface; transport (WebSocket broker, in-memory) is chosen at
// startup.
type Bus interface {
	// Publish sends data on a topic.
	Publish(topic string, data []byte) error

	// Subscribe registers a handler for a topic. Handlers for a topic are
	// invoked in message order.
	Subscribe(topic string, handler Handler) error

	// Close releases the transport.
	Close() error
}
