package notify

import "context"

// ExampleNoop shows that Noop accepts an event and produces no output,
// without needing network access. (execution/director_test.go records
// events with its own notifier and does not use Noop.)
func ExampleNoop() {
	var n Noop
	n.Notify(context.Background(), "auction promoted")
	// Output:
}
