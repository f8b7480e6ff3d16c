package model

// TaskStatus is the lifecycle state of one download.
type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusError       TaskStatus = "error"
	// TaskStatusSkipped marks a playlist video that never got a format.
	TaskStatusSkipped TaskStatus = "skipped"
)

func (ts TaskStatus) String() string {
	return string(ts)
}

// IsFinished reports whether the task reached a terminal state.
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusError || ts == TaskStatusSkipped
}

// Label is the short tag the printer shows for a finished task.
func (ts TaskStatus) Label() string {
	switch ts {
	case TaskStatusCompleted:
		return "OK"
	case TaskStatusError:
		return "FAIL"
	case TaskStatusSkipped:
		return "SKIP"
	default:
		return "..."
	}
}
