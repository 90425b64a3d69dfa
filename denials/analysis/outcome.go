package analysis

// Arm names which path produced an Outcome.
type Arm string

const (
	ArmRemote  Arm = "remote"
	ArmOffline Arm = "offline"
)

// Outcome is the result of a call that falls back to local generation when the backend
// cannot answer. Cause is set only on the offline arm and holds the remote failure.
type Outcome[T any] struct {
	Arm   Arm
	Value T
	Cause error
}

func Remote[T any](v T) Outcome[T] {
	return Outcome[T]{Arm: ArmRemote, Value: v}
}

func Offline[T any](v T, cause error) Outcome[T] {
	return Outcome[T]{Arm: ArmOffline, Value: v, Cause: cause}
}

func (o Outcome[T]) IsOffline() bool {
	return o.Arm == ArmOffline
}

// StatusLine is the message shown next to a result. subject names the operation, for
// example "Root cause analysis".
func StatusLine[T any](o Outcome[T], subject string) string {
	if o.IsOffline() {
		return subject + " generated using offline intelligence because the backend could not be reached."
	}
	return subject + " completed."
}
