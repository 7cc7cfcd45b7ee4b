package chathub

// Client is one live connection as seen by the hub. It abstracts the
// underlying transport so the hub can manage any client type uniformly.
type Client interface {
	// ConnID returns the unique identifier of this connection.
	ConnID() string

	// Enqueue hands an encoded frame to the client's bounded send queue. It
	// never blocks; false means the frame was dropped.
	Enqueue(frame []byte) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close closes the send queue. Frames already queued are still written.
	Close()
}
