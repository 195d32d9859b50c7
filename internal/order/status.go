package order

// Status is the lifecycle state of a task in the hierarchy.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusSkipped    Status = "skipped"
)

// Actionable reports whether a task in this status can still be worked on.
func (s Status) Actionable() bool {
	return s == StatusPending || s == StatusInProgress
}
