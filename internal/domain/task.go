package domain

// DeliveryTask is the pending obligation to deliver one issue to one
// subscriber. Its identity is the (issue, subscriber) pair, which is also
// the primary key of the queue row: the row's presence is the task's only
// state, so deleting the row is the only state transition.
type DeliveryTask struct {
	IssueID         string
	SubscriberEmail string

	// Retries is the number of failed send attempts recorded so far.
	// Persisted with the row so the retry budget survives restarts and is
	// shared when workers run as separate processes.
	Retries int
}
