package models

import "time"

// ExecutionStatus is the terminal status of one invocation pass.
type ExecutionStatus string

const (
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusBlocked   ExecutionStatus = "blocked"
	ExecutionStatusFaulted   ExecutionStatus = "faulted"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// ExecutionContext is the transient result of one Start or Resume. Its effects
// are already folded into the workflow when the pass completed or blocked.
type ExecutionContext struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	DefinitionID string          `json:"definition_id,omitempty"`
	ActivityID   string          `json:"activity_id"` // Entry point of the pass
	Status       ExecutionStatus `json:"status"`
	Blocked      []string        `json:"blocked,omitempty"`   // Added to BlockingActivities
	Unblocked    []string        `json:"unblocked,omitempty"` // Removed from BlockingActivities
	Output       *Variables      `json:"output"`
	Journal      []JournalEntry  `json:"journal,omitempty"`
	Fault        *ActivityFault  `json:"fault,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// JournalEntry records one activity execution of a pass.
type JournalEntry struct {
	ActivityID string `json:"activity_id"`
	Via        string `json:"via,omitempty"`     // Inbound connection ID
	Outcome    string `json:"outcome,omitempty"` // Empty when the activity suspended or halted
	Suspended  bool   `json:"suspended,omitempty"`
}

// Executed reports whether the activity ran during the pass.
func (c *ExecutionContext) Executed(activityID string) bool {
	for _, entry := range c.Journal {
		if entry.ActivityID == activityID {
			return true
		}
	}

	return false
}

// ActivityFault is raised when an activity fails. Cause is the underlying error,
// an expression evaluation error included.
type ActivityFault struct {
	ActivityID   string `json:"activity_id"`
	ActivityName string `json:"activity_name,omitempty"`
	Message      string `json:"message"`
	Cause        error  `json:"-"`
}

func NewActivityFault(activity *Activity, cause error) *ActivityFault {
	return &ActivityFault{
		ActivityID:   activity.ID,
		ActivityName: activity.Name,
		Message:      cause.Error(),
		Cause:        cause,
	}
}

func (f *ActivityFault) Error() string {
	return "activity " + f.ActivityID + " faulted: " + f.Message
}

func (f *ActivityFault) Unwrap() error {
	return f.Cause
}
