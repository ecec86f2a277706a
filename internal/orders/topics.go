package orders

const (
	// All lifecycle events for one order share a topic; the envelope
	// carries the event type.
	TopicOrderEvents = "order.events"
)

// PartitionKey keys every event of one order to the same partition so
// its lifecycle stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
