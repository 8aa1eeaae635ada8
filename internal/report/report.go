// Package report maps the executor's terminal state onto the public result shape.
package report

import (
	"encoding/base64"
	"fmt"
)

// Status is the relationship outcome reported to the caller
type Status string

const (
	StatusSent      Status = "sent"
	StatusPending   Status = "pending"
	StatusConnected Status = "connected"
	StatusFailed    Status = "failed"
	StatusUnknown   Status = "unknown"
)

// Action is what the run actually did on the profile
type Action string

const (
	ActionConnect Action = "connect"
	ActionFollow  Action = "follow"
	ActionBoth    Action = "both"
	ActionNone    Action = "none"
)

// Combine merges the outcome of the connect and follow sub-flows
func Combine(connected, followed bool) Action {
	switch {
	case connected && followed:
		return ActionBoth
	case connected:
		return ActionConnect
	case followed:
		return ActionFollow
	default:
		return ActionNone
	}
}

// State is a node of the executor state machine
type State string

const (
	StateStart            State = "START"
	StateNavigated        State = "NAVIGATED"
	StateStatusChecked    State = "STATUS_CHECKED"
	StateAlreadyConnected State = "ALREADY_CONNECTED"
	StateAlreadyPending   State = "ALREADY_PENDING"
	StateActionable       State = "ACTIONABLE"
	StateButtonClicked    State = "BUTTON_CLICKED"
	StateDialogHandled    State = "DIALOG_HANDLED"
	StateSent             State = "SENT"
	StateFailed           State = "FAILED"
)

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	switch s {
	case StateAlreadyConnected, StateAlreadyPending, StateSent, StateFailed:
		return true
	}
	return false
}

// ActionResult is the structured outcome of one automation invocation
type ActionResult struct {
	Success    bool   `json:"success"`
	Status     Status `json:"status"`
	Action     Action `json:"action"`
	Message    string `json:"message"`
	Screenshot string `json:"screenshot,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Context is collected while the state machine runs
type Context struct {
	State      State
	Status     Status
	Action     Action
	Message    string
	Screenshot []byte
	Err        error
	// Panicked is set when the run was cut short by a recovered panic; the page
	// it ran on should not be reused
	Panicked bool
}

// Fail returns a FAILED context carrying err
func Fail(message string, err error) Context {
	return Context{State: StateFailed, Status: StatusFailed, Action: ActionNone, Message: message, Err: err}
}

// Finalize builds the caller-facing result. Status and action are always set,
// falling back to unknown and none. A run that stopped in a non-terminal state is a failure.
func Finalize(state State, c Context) ActionResult {
	res := ActionResult{
		Status:  c.Status,
		Action:  c.Action,
		Message: c.Message,
	}

	switch state {
	case StateSent, StateAlreadyConnected, StateAlreadyPending:
		res.Success = true
	case StateFailed:
		res.Status = StatusFailed
	default:
		res.Status = StatusUnknown
		if res.Message == "" {
			res.Message = fmt.Sprintf("run stopped before reaching a result (state %s)", stateName(state))
		}
	}

	if res.Status == "" {
		res.Status = StatusUnknown
	}
	if res.Action == "" {
		res.Action = ActionNone
	}
	if res.Message == "" {
		res.Message = defaultMessage(state)
	}
	if c.Err != nil {
		res.Error = c.Err.Error()
	}
	if len(c.Screenshot) > 0 {
		res.Screenshot = base64.StdEncoding.EncodeToString(c.Screenshot)
	}

	return res
}

// DecodeScreenshot returns the PNG bytes of an ActionResult screenshot
func DecodeScreenshot(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return data, nil
}

func stateName(s State) string {
	if s == "" {
		return string(StateStart)
	}
	return string(s)
}

func defaultMessage(s State) string {
	switch s {
	case StateSent:
		return "action completed"
	case StateAlreadyConnected:
		return "already connected"
	case StateAlreadyPending:
		return "connection request already pending"
	case StateFailed:
		return "automation failed"
	}
	return "outcome unknown"
}
