package queue

// Option applies a configuration option to the TriggerQueue.
type Option func(*TriggerQueue)

// WithCapacity sets how many cycle requests may wait at once.
func WithCapacity(capacity int) Option {
	return func(q *TriggerQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}
