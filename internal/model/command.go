package model

// Command is a handle on an asynchronous control-plane operation.
type Command struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
	Success       bool   `json:"success"`
	ResultMessage string `json:"result_message,omitempty"`
}

// CommandOutcome is how a polled command ended from the caller's view.
type CommandOutcome string

const (
	OutcomeSucceeded CommandOutcome = "SUCCEEDED"
	OutcomeFailed    CommandOutcome = "FAILED"
	OutcomeTimedOut  CommandOutcome = "TIMED_OUT"
)

// CommandResult is the outcome of polling a command.
type CommandResult struct {
	Command Command        `json:"command"`
	Outcome CommandOutcome `json:"outcome"`
}

// Message describes the result for humans.
func (r CommandResult) Message() string {
	if r.Command.ResultMessage != "" {
		return r.Command.ResultMessage
	}
	switch r.Outcome {
	case OutcomeTimedOut:
		return "command did not finish before the timeout"
	case OutcomeFailed:
		return "command failed"
	}
	return "command succeeded"
}
